// PTRA: Patient Trajectory Analysis Library
// Copyright (c) 2022 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/ptra/blob/master/LICENSE.txt>.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"

	"mortality/app"
	"mortality/config"
	"mortality/cv"
	"mortality/logger"
	"mortality/stats"
)

/*
Mortality builds mortality prediction features from clinical event logs and evaluates classifiers on them.

Usage:
	mortality command args [flags]

Commands:

	mortality etl inputPath outputPath [flags]
	mortality cv featuresFile [flags]
	mortality stats inputPath [flags]
	mortality sequences trainPath validationPath testPath outputPath [flags]

Example:
	mortality etl ./data/train/ ./deliverables/ --windowDays 2000 --deathOffsetDays 30 --sqlite etl.db
	mortality cv ./deliverables/features_svmlight.train --k 5 --iter 5 --testFraction 0.2 --nrOfThreads 8

The flags are:

--config file
	A YAML file with run parameters. Flags that are passed explicitly override the values in the file.
--windowDays nr
	The length of the observation window in days. Only events at most this many days before the index date of a
	patient are used for features.
--deathOffsetDays nr
	The number of days before the date of death that is used as index date for deceased patients.
--efilters diag | drug | lab | valued
	A list of filters restricting the events that are used for features, next to the observation window.
--sqlite file
	Also store the index dates, filtered events and aggregated features in an SQLite database.
--k nr
	The number of folds for k-fold cross-validation.
--iter nr
	The number of iterations of randomized cross-validation.
--testFraction f
	The fraction of samples held out per iteration of randomized cross-validation.
--seed nr
	The seed of the randomized splits. Runs with the same seed produce the same splits.
--epochs nr, --learningRate f, --l2 f
	The gradient descent parameters of the logistic regression.
--scoreAUC
	Compute the AUC from predicted probabilities instead of hard 0/1 predictions.
--nrOfThreads nr
	The number of threads used for evaluating folds.
--logLevel level
	One of panic, fatal, error, warn, info, debug, trace.
--logFormat text | json
	The format of the log output.
*/

const (
	programVersion = 0.1
	programName    = "mortality"
)

func programMessage() string {
	return fmt.Sprint(programName, " version ", programVersion, " compiled with ", runtime.Version())
}

const commonHelp = "[--config file]\n" +
	"[--nrOfThreads nr]\n" +
	"[--logLevel level]\n" +
	"[--logFormat text | json]\n"

const mortalityHelp = "\nmortality commands:\n" +
	"mortality etl inputPath outputPath [flags]\n" +
	"mortality cv featuresFile [flags]\n" +
	"mortality stats inputPath [flags]\n" +
	"mortality sequences trainPath validationPath testPath outputPath [flags]\n"

const etlHelp = "\netl parameters:\n" +
	"mortality etl inputPath outputPath\n" +
	"[--windowDays nr]\n" +
	"[--deathOffsetDays nr]\n" +
	"[--efilters diag | drug | lab | valued]\n" +
	"[--sqlite file]\n" + commonHelp

const cvHelp = "\ncv parameters:\n" +
	"mortality cv featuresFile\n" +
	"[--k nr]\n" +
	"[--iter nr]\n" +
	"[--testFraction f]\n" +
	"[--seed nr]\n" +
	"[--epochs nr]\n" +
	"[--learningRate f]\n" +
	"[--l2 f]\n" +
	"[--scoreAUC]\n" + commonHelp

const statsHelp = "\nstats parameters:\n" +
	"mortality stats inputPath\n" + commonHelp

const sequencesHelp = "\nsequences parameters:\n" +
	"mortality sequences trainPath validationPath testPath outputPath\n" + commonHelp

// parseFlags parses the flags that follow the required arguments of a command. os.Args[1] is the command name.
func parseFlags(flags *flag.FlagSet, requiredArgs int, help string) {
	if len(os.Args) < requiredArgs+2 {
		fmt.Fprintln(os.Stderr, "Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	flags.SetOutput(io.Discard)
	if err := flags.Parse(os.Args[requiredArgs+2:]); err != nil {
		x := 0
		if err != flag.ErrHelp {
			fmt.Fprint(os.Stderr, err)
			x = 1
		}
		fmt.Fprint(os.Stderr, help)
		os.Exit(x)
	}
	if flags.NArg() > 0 {
		fmt.Fprint(os.Stderr, "Cannot parse remaining parameters:", flags.Args())
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
}

func getFileName(s, help string) string {
	switch s {
	case "-h", "--h", "-help", "--help":
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	return s
}

// commonFlags are accepted by every command.
type commonFlags struct {
	configFile  string
	nrOfThreads int
	logLevel    string
	logFormat   string
}

func (c *commonFlags) register(flags *flag.FlagSet) {
	defaults := config.Default()
	flags.StringVar(&c.configFile, "config", "", "A YAML file with run parameters.")
	flags.IntVar(&c.nrOfThreads, "nrOfThreads", 0, "The number of threads mortality uses.")
	flags.StringVar(&c.logLevel, "logLevel", defaults.Log.Level, "The minimum level of log messages.")
	flags.StringVar(&c.logFormat, "logFormat", defaults.Log.Format, "The log format, text or json.")
}

// load reads the configuration file, applies the explicitly passed flags through override, validates the result and
// creates the logger.
func (c *commonFlags) load(flags *flag.FlagSet, override func(cfg *config.Config, name string)) (config.Config,
	*logrus.Logger, error) {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return cfg, nil, err
	}
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "nrOfThreads":
			cfg.Threads = c.nrOfThreads
		case "logLevel":
			cfg.Log.Level = c.logLevel
		case "logFormat":
			cfg.Log.Format = c.logFormat
		default:
			if override != nil {
				override(&cfg, f.Name)
			}
		}
	})
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		return cfg, log, err
	}
	if cfg.Threads > 0 {
		runtime.GOMAXPROCS(cfg.Threads)
	}
	log.Info(programMessage())
	log.WithField("args", os.Args).Info("Executing command.")
	return cfg, log, nil
}

func etlCommand() (*logrus.Logger, error) {
	var (
		common          commonFlags
		windowDays      int
		deathOffsetDays int
		efilters        string
		sqlitePath      string
	)
	defaults := config.Default()
	var flags flag.FlagSet
	common.register(&flags)
	flags.IntVar(&windowDays, "windowDays", defaults.ETL.WindowDays, "The length of the observation window in "+
		"days before the index date.")
	flags.IntVar(&deathOffsetDays, "deathOffsetDays", defaults.ETL.DeathOffsetDays, "The number of days before "+
		"death used as index date of deceased patients.")
	flags.StringVar(&efilters, "efilters", "id", "A list of event filters applied on top of the observation "+
		"window.")
	flags.StringVar(&sqlitePath, "sqlite", "", "An SQLite database receiving the intermediate tables.")
	parseFlags(&flags, 2, etlHelp)
	inputPath := getFileName(os.Args[2], etlHelp)
	outputPath, err := filepath.Abs(getFileName(os.Args[3], etlHelp))
	if err != nil {
		return nil, err
	}
	cfg, log, err := common.load(&flags, func(cfg *config.Config, name string) {
		switch name {
		case "windowDays":
			cfg.ETL.WindowDays = windowDays
		case "deathOffsetDays":
			cfg.ETL.DeathOffsetDays = deathOffsetDays
		case "sqlite":
			cfg.Store.Path = sqlitePath
		}
	})
	if err != nil {
		return log, err
	}
	filters, err := app.GetEventFilters(efilters)
	if err != nil {
		return log, err
	}
	etlConfig := cfg.ETLConfig()
	etlConfig.Filters = filters
	_, err = app.RunETL(context.Background(), app.ETLParams{
		InputPath:  inputPath,
		OutputPath: outputPath,
		SQLitePath: cfg.Store.Path,
		Config:     etlConfig,
	}, log)
	return log, err
}

func printMetrics(name string, result *cv.Result) {
	fmt.Println(name)
	fmt.Printf("Average Accuracy: %v\n", result.Mean.Accuracy)
	fmt.Printf("Average AUC: %v\n", result.Mean.AUC)
	fmt.Printf("Average Precision: %v\n", result.Mean.Precision)
	fmt.Printf("Average Recall: %v\n", result.Mean.Recall)
	fmt.Printf("Average F1: %v\n", result.Mean.F1)
}

func cvCommand() (*logrus.Logger, error) {
	var (
		common       commonFlags
		k            int
		iter         int
		testFraction float64
		seed         uint
		epochs       int
		learningRate float64
		l2           float64
		scoreAUC     bool
	)
	defaults := config.Default()
	var flags flag.FlagSet
	common.register(&flags)
	flags.IntVar(&k, "k", defaults.CV.K, "The number of folds for k-fold cross-validation.")
	flags.IntVar(&iter, "iter", defaults.CV.Iterations, "The number of randomized cross-validation iterations.")
	flags.Float64Var(&testFraction, "testFraction", defaults.CV.TestFraction, "The fraction of samples held out "+
		"per randomized iteration.")
	flags.UintVar(&seed, "seed", uint(defaults.CV.Seed), "The seed of the randomized splits.")
	flags.IntVar(&epochs, "epochs", defaults.CV.Epochs, "The number of gradient descent epochs.")
	flags.Float64Var(&learningRate, "learningRate", defaults.CV.LearningRate, "The gradient descent step size.")
	flags.Float64Var(&l2, "l2", defaults.CV.L2, "The L2 penalty on the weights.")
	flags.BoolVar(&scoreAUC, "scoreAUC", defaults.CV.ScoreAUC, "Compute the AUC from predicted probabilities.")
	parseFlags(&flags, 1, cvHelp)
	featuresFile := getFileName(os.Args[2], cvHelp)
	if uint64(seed) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: seed %d does not fit in 32 bits", cv.ErrInvalidConfig, seed)
	}
	cfg, log, err := common.load(&flags, func(cfg *config.Config, name string) {
		switch name {
		case "k":
			cfg.CV.K = k
		case "iter":
			cfg.CV.Iterations = iter
		case "testFraction":
			cfg.CV.TestFraction = testFraction
		case "seed":
			cfg.CV.Seed = uint32(seed)
		case "epochs":
			cfg.CV.Epochs = epochs
		case "learningRate":
			cfg.CV.LearningRate = learningRate
		case "l2":
			cfg.CV.L2 = l2
		case "scoreAUC":
			cfg.CV.ScoreAUC = scoreAUC
		}
	})
	if err != nil {
		return log, err
	}
	report, err := app.RunCV(app.CVParams{
		FeaturesFile: featuresFile,
		K:            cfg.CV.K,
		Iterations:   cfg.CV.Iterations,
		TestFraction: cfg.CV.TestFraction,
		Seed:         cfg.CV.Seed,
		Options:      cfg.ClassifierOptions(),
		ScoreAUC:     cfg.CV.ScoreAUC,
	}, log)
	if err != nil {
		return log, err
	}
	printMetrics("______________________________________________\nK-fold cross-validation:", report.KFold)
	fmt.Printf("Binomial p-value against majority rate %v: %v\n", report.KFold.MajorityRate, report.KFold.PValue)
	printMetrics("______________________________________________\nRandomized cross-validation:", report.Randomized)
	return log, nil
}

func printSummary(name string, m stats.GroupMetrics) {
	fmt.Printf("%s (dead): min %v, max %v, mean %v over %d patients\n", name, m.Dead.Min, m.Dead.Max, m.Dead.Mean,
		m.Dead.N)
	fmt.Printf("%s (alive): min %v, max %v, mean %v over %d patients\n", name, m.Alive.Min, m.Alive.Max,
		m.Alive.Mean, m.Alive.N)
}

func statsCommand() (*logrus.Logger, error) {
	var common commonFlags
	var flags flag.FlagSet
	common.register(&flags)
	parseFlags(&flags, 1, statsHelp)
	inputPath := getFileName(os.Args[2], statsHelp)
	_, log, err := common.load(&flags, nil)
	if err != nil {
		return log, err
	}
	report, err := app.RunStats(inputPath, log)
	if err != nil {
		return log, err
	}
	printSummary("Event count", report.EventCount)
	printSummary("Encounter count", report.EncounterCount)
	printSummary("Record length", report.RecordLength)
	return log, nil
}

func sequencesCommand() (*logrus.Logger, error) {
	var common commonFlags
	var flags flag.FlagSet
	common.register(&flags)
	parseFlags(&flags, 4, sequencesHelp)
	params := app.SequenceParams{
		TrainPath:      getFileName(os.Args[2], sequencesHelp),
		ValidationPath: getFileName(os.Args[3], sequencesHelp),
		TestPath:       getFileName(os.Args[4], sequencesHelp),
		OutputPath:     getFileName(os.Args[5], sequencesHelp),
	}
	_, log, err := common.load(&flags, nil)
	if err != nil {
		return log, err
	}
	return log, app.RunSequences(params, log)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, mortalityHelp)
		os.Exit(1)
	}
	var (
		log *logrus.Logger
		err error
	)
	switch os.Args[1] {
	case "etl":
		log, err = etlCommand()
	case "cv":
		log, err = cvCommand()
	case "stats":
		log, err = statsCommand()
	case "sequences":
		log, err = sequencesCommand()
	case "-h", "--h", "-help", "--help", "help":
		fmt.Fprint(os.Stderr, mortalityHelp)
		os.Exit(0)
	default:
		fmt.Fprintln(os.Stderr, "Unknown command:", os.Args[1])
		fmt.Fprint(os.Stderr, mortalityHelp)
		os.Exit(1)
	}
	if err != nil {
		if log == nil {
			log = logger.New("info", "text")
		}
		log.WithError(err).Errorf("%s failed", os.Args[1])
		os.Exit(1)
	}
}

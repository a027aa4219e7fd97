/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/llm-d/llm-d-farm-simulator/internal/config"
	"github.com/llm-d/llm-d-farm-simulator/internal/logging"
	"github.com/llm-d/llm-d-farm-simulator/internal/metrics"
	"github.com/llm-d/llm-d-farm-simulator/internal/simulation"
)

var setupLog = ctrl.Log.WithName("setup")

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	fs := pflag.NewFlagSet("farm-simulator", pflag.ContinueOnError)
	configFile := fs.String("config", "", "Path to a YAML configuration file.")
	metricsFile := fs.String("metrics-file", "", "Write the final metrics in Prometheus text format to this path.")
	logVerbosity := fs.IntP("v", "v", logging.DEFAULT, "Number for the log level verbosity.")
	config.AddFlags(fs)

	// zap expects a standard Go FlagSet
	zapOpts := zap.Options{Development: true}
	gofs := flag.NewFlagSet("zap", flag.ContinueOnError)
	zapOpts.BindFlags(gofs)
	fs.AddGoFlagSet(gofs)

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	logging.InitLogging(&zapOpts, *logVerbosity)

	cfg, err := config.Load(*configFile, fs)
	if err != nil {
		setupLog.Error(err, "Failed to load configuration")
		return err
	}
	cfg.ApplyDriverBounds(setupLog)
	cfg.Complete()
	if dump, err := cfg.Dump(); err == nil {
		setupLog.V(logging.VERBOSE).Info("Effective configuration", "config", dump)
	}

	metrics.Register()

	runner, err := simulation.NewRunner(cfg)
	if err != nil {
		setupLog.Error(err, "Failed to create simulation")
		return err
	}

	setupLog.Info("Configuration",
		"servers", cfg.InitialWorkers,
		"maxServers", cfg.MaxWorkers,
		"cycles", cfg.Cycles,
		"initialQueueSize", cfg.InitialWorkers*cfg.RequestsPerWorker)

	ctx := ctrl.SetupSignalHandler()
	summary, runErr := runner.Run(ctx)
	if summary != nil {
		if err := summary.Report(os.Stdout); err != nil {
			setupLog.Error(err, "Failed to write report")
		}
	}
	if *metricsFile != "" {
		if err := writeMetrics(*metricsFile); err != nil {
			setupLog.Error(err, "Failed to write metrics", "path", *metricsFile)
			if runErr == nil {
				runErr = err
			}
		}
	}
	if runErr != nil {
		setupLog.Error(runErr, "Simulation ended with error")
	}
	return runErr
}

func writeMetrics(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := metrics.WriteText(f, nil); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

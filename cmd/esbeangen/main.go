// Command esbeangen generates script wrappers for Go classes ahead of time.
//
// It reads esbean.toml from the working directory or one of its parents,
// loads the configured packages, and writes one wrapper file per class into
// the generated package. The verify command regenerates in memory and fails
// if anything on disk differs, for use in CI.
package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/jawher/mow.cli"
	"github.com/sirupsen/logrus"

	"github.com/sdboyer/esbean/beaninfo"
	"github.com/sdboyer/esbean/codegen"
	"github.com/sdboyer/esbean/config"
	"github.com/sdboyer/esbean/jtype/srcload"
	"github.com/sdboyer/esbean/wrapper"
)

// Version is set when building.
var Version string

func main() {
	app := cli.App("esbeangen", "Generate script wrappers for Go classes")
	dir := app.StringOpt("C dir", ".", "directory to search for "+config.FileName+" from")
	verbose := app.BoolOpt("v verbose", false, "log at debug level")

	var (
		cfg *config.Config
		log *logrus.Logger
	)
	app.Before = func() {
		var err error
		if cfg, err = config.FindAndLoad(*dir); err != nil {
			fatal(err)
		}
		log = cfg.Logger()
		if *verbose {
			log.SetLevel(logrus.DebugLevel)
		}
		// Patterns are relative to the configuration directory.
		if err := os.Chdir(cfg.Dir); err != nil {
			fatal(err)
		}
	}

	app.Command("generate", "Generate and compile wrappers for the configured classes", func(cmd *cli.Cmd) {
		noCompile := cmd.BoolOpt("n no-compile", false, "skip type-checking the generated package")
		cmd.Action = func() {
			ctx := context.Background()
			infos, err := analyze(ctx, cfg, log)
			if err != nil {
				fatal(err)
			}
			opts := cfg.GeneratorOptions(log)
			if *noCompile {
				opts = append(opts, codegen.WithCompiler(nil))
			}
			res, err := codegen.NewGenerator(cfg.WorkPath(), opts...).Generate(ctx, infos...)
			if err != nil {
				fatal(err)
			}
			log.WithFields(logrus.Fields{
				"generated": len(res.Generated),
				"skipped":   len(res.Skipped),
			}).Info("done")
		}
	})

	app.Command("verify", "Check that generated wrappers on disk are up to date", func(cmd *cli.Cmd) {
		cmd.Action = func() {
			ctx := context.Background()
			infos, err := analyze(ctx, cfg, log)
			if err != nil {
				fatal(err)
			}
			gen := codegen.NewGenerator(cfg.WorkPath(), cfg.GeneratorOptions(log)...)
			if err := gen.Verify(ctx, infos...); err != nil {
				fatal(err)
			}
		}
	})

	app.Command("inspect", "Print the analysis of one class", func(cmd *cli.Cmd) {
		class := cmd.StringArg("CLASS", "", "qualified class name, e.g. example.com/shapes.Point")
		cmd.Spec = "CLASS"
		cmd.Action = func() {
			u, err := srcload.Load(context.Background(), cfg.Patterns...)
			if err != nil {
				fatal(err)
			}
			t, ok := u.Lookup(*class)
			if !ok {
				fatal(fmt.Errorf("class %s not found in %v", *class, cfg.Patterns))
			}
			in := beaninfo.NewIntrospector(u, cfg.IntrospectorOptions(log)...)
			fmt.Print(in.Analyze(t).Describe())
		}
	})

	app.Command("version", "Print the version and exit", func(cmd *cli.Cmd) {
		cmd.Action = func() {
			v := Version
			if v == "" {
				v = "(development version)"
			}
			fmt.Printf("esbeangen %s, wrapper format %d\n", v, wrapper.FormatVersion)
		}
	})

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "esbeangen:", err)
	os.Exit(1)
}

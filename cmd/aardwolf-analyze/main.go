// Command aardwolf-analyze is a demonstration composition root wiring the
// statement detector (internal/detect), static serializer (internal/static)
// and source instrumenter (internal/instrument) together over a real Go
// package set. It is not the production driver (spec.md §6 leaves the CLI
// surface, exit codes, and filesystem conventions as a collaborator
// contract) — it exists to exercise the pipeline end to end.
package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/aardwolf-sfl/aardwolf/internal/aardconfig"
	"github.com/aardwolf-sfl/aardwolf/internal/detect"
	"github.com/aardwolf-sfl/aardwolf/internal/instrument"
	"github.com/aardwolf-sfl/aardwolf/internal/repo"
	"github.com/aardwolf-sfl/aardwolf/internal/static"
)

func main() {
	var (
		configPath = flag.String("config", "aardwolf.yml", "path to the project config file")
		module     = flag.String("module", "module", "basename for the written .aard artifact")
		write      = flag.Bool("write-sources", false, "overwrite instrumented source files in place")
	)
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: aardwolf-analyze [flags] <packages...>")
		os.Exit(2)
	}

	if err := run(*configPath, *module, *write, flag.Args()); err != nil {
		log.WithError(err).Fatal("aardwolf-analyze: failed")
	}
}

func run(configPath, moduleBasename string, writeSources bool, patterns []string) error {
	cfg, err := aardconfig.Load(configPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load config: %w", err)
	}
	if os.IsNotExist(err) {
		cfg = aardconfig.Default()
	}

	pkgCfg := &packages.Config{
		Mode:  packages.LoadAllSyntax,
		Tests: false,
	}

	log.Info("loading input packages...")
	initial, err := packages.Load(pkgCfg, patterns...)
	if err != nil {
		return err
	}
	if packages.PrintErrors(initial) > 0 {
		return fmt.Errorf("packages contain errors")
	}
	if len(initial) == 0 {
		return fmt.Errorf("package list empty")
	}
	log.Info("done -- packages loaded")

	prog, _ := ssautil.AllPackages(initial, ssa.GlobalDebug|ssa.SanityCheckFunctions)
	log.Info("building SSA for the program...")
	prog.Build()
	log.Info("done -- SSA built")

	var fns []*ssa.Function
	for fn := range ssautil.AllFunctions(prog) {
		if fn.Pkg == nil || fn.Pkg.Pkg == nil || cfg.IsExcluded(fn.Pkg.Pkg.Path()) {
			continue
		}
		fns = append(fns, fn)
	}

	r := repo.New()
	if err := detect.Functions(r, fns); err != nil {
		return fmt.Errorf("detect statements: %w", err)
	}

	destDir := cfg.ResolveDestDir()
	path, err := static.Write(r, destDir, moduleBasename)
	if err != nil {
		return fmt.Errorf("write static artifact: %w", err)
	}
	log.WithField("path", path).Info("wrote static artifact")

	if cfg.InstrumentationDisabled() {
		log.Info("instrumentation disabled by config, skipping source rewrite")
		return nil
	}

	rewritten, err := instrument.Apply(r, instrument.RuntimeImportPath)
	if err != nil {
		return fmt.Errorf("instrument sources: %w", err)
	}
	log.WithField("files", len(rewritten)).Info("instrumented source files")

	if !writeSources {
		return nil
	}
	for path, src := range rewritten {
		if err := os.WriteFile(path, src, 0o644); err != nil {
			return fmt.Errorf("write instrumented %s: %w", path, err)
		}
	}
	return nil
}

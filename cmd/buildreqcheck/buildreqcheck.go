// Program buildreqcheck empirically determines which BuildRequires a source
// RPM declares are unneeded, by rebuilding it repeatedly inside an isolated
// root with candidate requirements forced absent and comparing the result
// against a reproducible reference build.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stapelberg/buildreqcheck"
	"github.com/stapelberg/buildreqcheck/internal/logging"
	"github.com/stapelberg/buildreqcheck/internal/pkgcompare"
	"github.com/stapelberg/buildreqcheck/internal/rpmmeta"
	"github.com/stapelberg/buildreqcheck/internal/sandbox"
	"github.com/stapelberg/buildreqcheck/internal/session"
)

var (
	root          = flag.String("root", "", "name of the isolated-build root configuration")
	noClean       = flag.Bool("no_clean", false, "retain the workdir on exit")
	reproduceOnly = flag.Bool("reproduce_only", false, "run only the reproducibility gate and exit")
	loglvl        = flag.String("loglvl", "info", "verbosity: debug, info, warning, error, critical")
	assumeCompose = flag.Bool("assume_compose", false, "assume a candidate is unneeded once every one of its members is individually confirmed unneeded, skipping the joint probe (unsound; faster)")
	offline       = flag.Bool("offline", false, "never let the isolated-build driver reach out to a package repository mid-run")
	resultJSON    = flag.String("result_json", "", "also write the result as JSON to this path")
)

func parseLevel(s string) (logging.Level, error) {
	switch s {
	case "debug":
		return logging.LevelDebug, nil
	case "info":
		return logging.LevelInfo, nil
	case "warning":
		return logging.LevelWarning, nil
	case "error":
		return logging.LevelError, nil
	case "critical":
		return logging.LevelCritical, nil
	default:
		return 0, fmt.Errorf("invalid -loglvl %q", s)
	}
}

func funcmain() error {
	flag.Parse()

	lvl, err := parseLevel(*loglvl)
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, lvl)

	if flag.NArg() != 1 {
		return fmt.Errorf("syntax: buildreqcheck [-flags] <source-package>")
	}
	srcPath := flag.Arg(0)

	workDir, err := os.MkdirTemp("", "buildreqcheck-")
	if err != nil {
		return err
	}
	if *noClean {
		log.Infof("retaining workdir %s", workDir)
	} else {
		buildreqcheck.RegisterAtExit(func() error {
			return os.RemoveAll(workDir)
		})
	}

	reader := rpmmeta.New()
	requires, err := reader.Requires(srcPath)
	if err != nil {
		return fmt.Errorf("reading requirements of %s: %w", srcPath, err)
	}

	src := &buildreqcheck.SourcePackage{
		Path:     srcPath,
		Requires: buildreqcheck.NewRequirementSet(buildreqcheck.FilterCapabilities(requires)...),
		Name:     sourcePackageName(srcPath),
	}

	orch := &session.Orchestrator{
		Sandbox: sandbox.New(filepath.Join(workDir, "scratch"), *offline),
		Compare: pkgcompare.New(reader, rpmmeta.NewExtractor()),
		Log:     log,
	}

	ctx, canc := buildreqcheck.InterruptibleContext()
	defer canc()

	result, err := session.Run(ctx, orch, src, session.Options{
		Root:           *root,
		NoClean:        *noClean,
		ReproduceOnly:  *reproduceOnly,
		AssumeCompose:  *assumeCompose,
		WorkDir:        workDir,
		ResultJSONPath: *resultJSON,
	})
	if err != nil {
		var notRepro *session.NotReproducibleError
		if isNotReproducible(err, &notRepro) {
			log.Criticalf("%v", err)
			os.Exit(1)
		}
		return err
	}

	if line := result.Line(); line != "" {
		fmt.Println(line)
	}
	return buildreqcheck.RunAtExit()
}

func isNotReproducible(err error, target **session.NotReproducibleError) bool {
	for err != nil {
		if nr, ok := err.(*session.NotReproducibleError); ok {
			*target = nr
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func sourcePackageName(srcPath string) string {
	name := filepath.Base(srcPath)
	for _, suffix := range []string{".src.rpm", ".rpm"} {
		if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			return name[:len(name)-len(suffix)]
		}
	}
	return name
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"bufio"
	"os"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/jgbaldwinbrown/marshmicro/marsh/pkg"
)

var (
	app     = kingpin.New("marsh", "Microbial community analysis of the seawater intrusion experiment.")
	cfgPath = app.Flag("config", "JSON configuration file (see makecfg).").Short('c').Default("marsh.json").String()

	runCmd     = app.Command("run", "Run every stage.")
	curvesCmd  = app.Command("curves", "Rarefaction curves.")
	alphaCmd   = app.Command("alpha", "Alpha diversity by treatment.")
	betaCmd    = app.Command("beta", "PCoA, PERMANOVA and dispersion.")
	rdaCmd     = app.Command("rda", "Redundancy analysis against environmental covariates.")
	groupsCmd  = app.Command("groups", "Taxon group abundance by treatment.")
	makecfgCmd = app.Command("makecfg", "Print the default configuration.")
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))
	if command == makecfgCmd.FullCommand() {
		marsh.MakeCfg()
		return
	}

	cfg, e := marsh.LoadConfig(*cfgPath)
	kingpin.FatalIfError(e, "loading %v", *cfgPath)

	stdout := bufio.NewWriter(os.Stdout)
	defer stdout.Flush()

	switch command {
	case runCmd.FullCommand():
		e = marsh.Run(cfg, stdout)
	case curvesCmd.FullCommand():
		e = marsh.RunStages(cfg, stdout, marsh.StageCurves)
	case alphaCmd.FullCommand():
		e = marsh.RunStages(cfg, stdout, marsh.StageAlpha)
	case betaCmd.FullCommand():
		e = marsh.RunStages(cfg, stdout, marsh.StageBeta)
	case rdaCmd.FullCommand():
		e = marsh.RunStages(cfg, stdout, marsh.StageRDA)
	case groupsCmd.FullCommand():
		e = marsh.RunStages(cfg, stdout, marsh.StageGroups)
	}
	if e != nil {
		stdout.Flush()
		kingpin.Fatalf("%v", e)
	}
}

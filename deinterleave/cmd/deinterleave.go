package main

import (
	"bufio"
	"context"
	"os"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/jgbaldwinbrown/marshmicro/deinterleave/pkg"
)

var (
	app     = kingpin.New("deinterleave", "Split interleaved FASTQ files into R1 and R2 mates per sample.")
	mapPath = app.Arg("map", "CSV of sample,file rows.").Required().String()
	outdir  = app.Flag("outdir", "Directory for <sample>_R1/_R2.fastq.gz.").Short('o').Default(".").String()
	tool    = app.Flag("tool", "Deinterleaving program.").Default(deint.DefaultTool).String()
	extra   = app.Flag("arg", "Extra argument passed to the tool; repeatable.").Strings()
	threads = app.Flag("threads", "Concurrent tool processes (0 for no limit).").Short('t').Default("1").Int()
	dryRun  = app.Flag("dry-run", "Print the commands instead of running them.").Short('n').Bool()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	ents, e := deint.ParseMapPath(*mapPath)
	kingpin.FatalIfError(e, "reading %v", *mapPath)
	jobs := deint.Jobs(*outdir, ents...)
	t := deint.Tool{Path: *tool, Extra: *extra}

	if *dryRun {
		stdout := bufio.NewWriter(os.Stdout)
		defer stdout.Flush()
		deint.Must(deint.DryRun(stdout, t, jobs...))
		return
	}
	kingpin.FatalIfError(os.MkdirAll(*outdir, 0o755), "creating %v", *outdir)
	kingpin.FatalIfError(deint.RunAll(context.Background(), t, *threads, jobs...), "deinterleave")
}

package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/sds011.go/pkg/daemon"
	fx "github.com/robotalks/sds011.go/pkg/framework"
)

func init() {
	daemon.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	d := daemon.NewConfig().MustNewDaemon()
	runner := fx.NewRunner().HandleSignals()
	if err := d.Run(runner.Context); err != nil {
		log.Fatalln(err)
	}
}

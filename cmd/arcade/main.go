package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"arcade/config"
	"arcade/log"
	"arcade/service"
)

var (
	ArcadeVersion string = "LOCAL"
	ArcadeCommit  string = "LOCAL"
)

func main() {
	if len(os.Args) < 2 {
		panic(fmt.Errorf("no config.toml specified"))
	}
	conf, err := config.Load(os.Args[1])
	if err != nil {
		panic(fmt.Errorf("%+v\n", err))
	}

	defer log.InitLogger(&conf.Game.LogConf)()
	log.SetLevel(log.Level(conf.Game.DefaultLoglevel))
	log.Infof("Arcade")
	log.Infof("ArcadeVersion: %v", ArcadeVersion)
	log.Infof("ArcadeCommit: %v", ArcadeCommit)

	db := sqlx.MustOpen("mysql", conf.Db.DSN())

	svc, err := service.New(db, &conf.Game)
	if err != nil {
		panic(fmt.Errorf("%+v\n", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ctx.Done():
		case sig := <-ch:
			log.Infof("got signal: %v", sig)
			cancel()
		}
	}()

	err = svc.Serve(ctx)
	if err != nil {
		panic(fmt.Errorf("%+v\n", err))
	}
}

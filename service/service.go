// Package service はarcadeのサーバ外殻.
// websocket(ルーム調停)とREST(カタログ・リーダーボード・投票)を
// 同一ポートで提供する.
package service

import (
	"context"

	"github.com/jmoiron/sqlx"

	"arcade/config"
	"arcade/game"
	"arcade/lobby"
)

type ArcadeService struct {
	conf  *config.GameConf
	repo  *game.Repository
	store *lobby.Store
	db    *sqlx.DB
}

func New(db *sqlx.DB, conf *config.GameConf) (*ArcadeService, error) {
	return &ArcadeService{
		conf:  conf,
		repo:  game.NewRepository(conf),
		store: lobby.NewStore(db),
		db:    db,
	}, nil
}

func (s *ArcadeService) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.repo.StartSweeper(ctx)

	var err error
	select {
	case <-ctx.Done():
	case err = <-s.serveMain(ctx):
	case err = <-s.servePprof(ctx):
	}
	return err
}

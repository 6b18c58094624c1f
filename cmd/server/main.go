package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/formauth/internal/server"
	"github.com/dmitrijs2005/formauth/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close()

	app.Run(ctx)

}

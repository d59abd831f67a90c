package main

import (
	"context"
	"log"

	"eventbot/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		log.Fatal(err)
	}

	if err := application.Run(context.Background()); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"github.com/tablerie/possync/internal/app"
	"github.com/tablerie/possync/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}

package main

import (
	"go.uber.org/fx"

	"github.com/gcs-commerce/orderhub/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}

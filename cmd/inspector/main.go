package main

import (
	"github.com/sirupsen/logrus"

	"github.com/bugmaker2/Inspector/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		logrus.Fatalf("application error: %v", err)
	}
}

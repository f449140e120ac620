package main

import "github.com/eleven-am/focus-backend/internal/bootstrap"

func main() {
	bootstrap.Run()
}

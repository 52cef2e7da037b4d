package main

import "time"

func main() {
	time.Local = time.UTC
	Execute()
}

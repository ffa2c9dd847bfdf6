package main

import shelf "github.com/jaym/shelf/apps/shelf/cmd"

func main() {
	shelf.Execute()
}

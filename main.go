// The main package for the music-crawler executable.
package main

import "github.com/JakeFAU/music-crawler/cmd"

func main() {
	cmd.Execute()
}

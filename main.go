package main

import "corsi-booking/cmd"

func main() {
	cmd.Execute()
}

/*
Copyright © 2026 JACOB ARTHURS
*/
package main

import "github.com/jacobarthurs/pgplanviz/cmd"

func main() {
	cmd.Execute()
}

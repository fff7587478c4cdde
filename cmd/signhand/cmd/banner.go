package cmd

import (
	"fmt"
)

const banner = `
  ____  _             _                     _ 
 / ___|(_) __ _ _ __ | |__   __ _ _ __   __| |
 \___ \| |/ _` + "`" + ` | '_ \| '_ \ / _` + "`" + ` | '_ \ / _` + "`" + ` |
  ___) | | (_| | | | | | | | (_| | | | | (_| |
 |____/|_|\__, |_| |_|_| |_|\__,_|_| |_|\__,_|
          |___/                               
`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Document Signing Service - Version %s\x1b[0m\n\n", Version)
}

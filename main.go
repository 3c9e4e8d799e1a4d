// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/buildhook/buildhook/cmd/buildhook"

func main() {
	cmd.Execute()
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/rtk-project/rtk/internal/errors"
)

var rtkSubcommands = []string{
	"explore", "delta", "refresh", "watch", "plan", "status",
	"clear", "gain", "serve", "init", "install-hook", "completion", "config",
}

func runCompletion(args []string, globals GlobalFlags) {
	if len(args) != 1 {
		errors.FatalError(errors.NewInputError(
			"Missing shell name",
			"rtk completion requires exactly one argument",
			"Run 'rtk completion bash|zsh|fish'",
			nil,
		), globals.JSON)
	}

	switch args[0] {
	case "bash":
		fmt.Print(bashCompletion())
	case "zsh":
		fmt.Print(zshCompletion())
	case "fish":
		fmt.Print(fishCompletion())
	default:
		errors.FatalError(errors.NewInputError(
			"Unsupported shell",
			fmt.Sprintf("%q is not bash, zsh, or fish", args[0]),
			"Run 'rtk completion bash|zsh|fish'",
			nil,
		), globals.JSON)
	}
}

func bashCompletion() string {
	return fmt.Sprintf(`# rtk bash completion
_rtk_completions() {
	local cur prev
	cur="${COMP_WORDS[COMP_CWORD]}"
	COMPREPLY=( $(compgen -W "%s" -- "$cur") )
}
complete -F _rtk_completions rtk
`, joinWords(rtkSubcommands))
}

func zshCompletion() string {
	return fmt.Sprintf(`#compdef rtk
_rtk() {
	local -a commands
	commands=(%s)
	_describe 'command' commands
}
_rtk
`, joinWords(rtkSubcommands))
}

func fishCompletion() string {
	out := ""
	for _, c := range rtkSubcommands {
		out += fmt.Sprintf("complete -c rtk -n '__fish_use_subcommand' -a %s\n", c)
	}
	return out
}

func joinWords(words []string) string {
	out := ""
	for i, w := range words {
		if i > 0 {
			out += " "
		}
		out += w
	}
	return out
}

/*
Copyright (C) 2022-2023 ApeCloud Co., Ltd

This file is part of OpTest project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package printer

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/briandowns/spinner"

	"github.com/apecloud/optest/internal/cli/types"
)

// Spinner renders a progress spinner with the given message and returns a
// function that stops it with an OK or FAIL suffix. The stop function is safe
// to call more than once, only the first call prints.
func Spinner(w io.Writer, fmtstr string, a ...any) func(result bool) {
	msg := fmt.Sprintf(fmtstr, a...)

	finish := func(s *spinner.Spinner) func(result bool) {
		var once sync.Once
		return func(result bool) {
			once.Do(func() {
				if s != nil {
					s.Stop()
				}
				suffix := BoldGreen("OK")
				if !result {
					suffix = BoldRed("FAIL")
				}
				fmt.Fprintf(w, "%s %s\n", msg, suffix)
			})
		}
	}

	// The windows console has no ANSI cursor control worth fighting with,
	// print the message once and skip the animation.
	if runtime.GOOS == types.GoosWindows {
		fmt.Fprintf(w, "%s\n", msg)
		return finish(nil)
	}

	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	s.Writer = w
	s.HideCursor = true
	_ = s.Color("cyan")
	s.Suffix = " " + msg
	s.Start()
	restoreCursorOnInterrupt(s)

	return finish(s)
}

// restoreCursorOnInterrupt stops the spinner and unhides the terminal cursor
// before the process exits on SIGINT or SIGTERM.
func restoreCursorOnInterrupt(s *spinner.Spinner) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		s.Stop()
		fmt.Fprintf(s.Writer, "\033[?25h")
		os.Exit(0)
	}()
}

/*
Copyright © 2024 the SMOS-Box authors.
This file is part of SMOS-Box.

SMOS-Box is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SMOS-Box is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SMOS-Box.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command smos is a command-line interface for reading SMOS Earth Explorer
// products and converting them to NetCDF.
package main

import (
	"fmt"
	"os"

	"github.com/bcdev/smos-box-sub001/smosutil"
)

func main() {
	if err := smosutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}

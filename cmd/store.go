// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/forensicworkflow/forensicstore"
)

// Store creates the command that inspects forensicstores.
func Store() *cobra.Command {
	storeCommand := &cobra.Command{
		Use:   "store",
		Short: "Inspect the forensicstore evidence is recorded in",
	}
	storeCommand.AddCommand(getCommand(), selectCommand(), allCommand(), insertCommand(),
		validateCommand(), lsCommand(), unpackCommand())
	return storeCommand
}

func printElements(w io.Writer, elements []forensicstore.JSONElement, field string) error {
	if field != "" {
		for _, element := range elements {
			if value := gjson.GetBytes(element, field); value.Exists() {
				fmt.Fprintln(w, value.String())
			}
		}
		return nil
	}

	raw := make([]json.RawMessage, len(elements))
	for i, element := range elements {
		raw[i] = json.RawMessage(element)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n", b)
	return nil
}

func getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id> <forensicstore>",
		Short: "Retrieve a single element",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := forensicstore.Open(args[1])
			if err != nil {
				return err
			}
			defer store.Close()

			element, err := store.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", element)
			return nil
		},
	}
}

func selectCommand() *cobra.Command {
	var where map[string]string
	var field string
	selectCmd := &cobra.Command{
		Use:   "select <type> <forensicstore>",
		Short: "Retrieve all elements of a specific type",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := forensicstore.Open(args[1])
			if err != nil {
				return err
			}
			defer store.Close()

			var conditions []map[string]string
			if len(where) > 0 {
				conditions = append(conditions, where)
			}
			elements, err := store.Select(args[0], conditions)
			if err != nil {
				return err
			}
			return printElements(cmd.OutOrStdout(), elements, field)
		},
	}
	selectCmd.Flags().StringToStringVar(&where, "where", nil, "field=pattern conditions (SQL LIKE)")
	selectCmd.Flags().StringVar(&field, "field", "", "print only this field of every element, e.g. hashes.SHA-256")
	return selectCmd
}

func allCommand() *cobra.Command {
	var field string
	allCmd := &cobra.Command{
		Use:   "all <forensicstore>",
		Short: "Retrieve all elements",
		Args:  cobra.ExactArgs(1), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := forensicstore.Open(args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			elements, err := store.All()
			if err != nil {
				return err
			}
			return printElements(cmd.OutOrStdout(), elements, field)
		},
	}
	allCmd.Flags().StringVar(&field, "field", "", "print only this field of every element")
	return allCmd
}

func insertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "insert <json> <forensicstore>",
		Short: "Insert an element, e.g. a note on the evidence",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := forensicstore.OpenOrCreate(args[1])
			if err != nil {
				return err
			}
			defer store.Close()

			elementID, err := store.Insert(forensicstore.JSONElement(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), elementID)
			return nil
		},
	}
}

func validateCommand() *cobra.Command {
	var noFail bool
	validateCmd := &cobra.Command{
		Use:   "validate <forensicstore>",
		Short: "Check elements and packed files",
		Args:  requireOneStore,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := forensicstore.Open(args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			flaws, err := store.Validate()
			if err != nil {
				return err
			}
			if len(flaws) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "OK")
				return nil
			}
			for _, flaw := range flaws {
				fmt.Fprintln(cmd.OutOrStdout(), flaw)
			}
			if noFail {
				return nil
			}
			return errors.Errorf("%d flaws found: %s", len(flaws), strings.Join(flaws, "; "))
		},
	}
	validateCmd.Flags().BoolVar(&noFail, "no-fail", false, "return exit code 0")
	return validateCmd
}

// Copyright 2025 Justin P Barnett
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/justinpbarnett/portfolio-chat/pkg/assistant"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the model catalog",
	Long:  `Print every provider/model pair the chat API accepts and whether it requires authentication.`,
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	catalog := assistant.NewCatalog()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tMODEL\tACCESS")
	for _, entry := range catalog.Entries() {
		access := "free"
		if entry.Gated {
			access = "gated"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", entry.Provider, entry.Model, access)
	}
	return w.Flush()
}

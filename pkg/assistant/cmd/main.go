// Copyright 2025 Justin P Barnett
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command assistant runs the portfolio chat service.
//
// The service answers questions about the site owner by retrieving facts
// from a vector-store knowledge corpus and streaming grounded completions
// from a configurable model provider.
//
// Usage:
//
//	assistant run                  # Start the server
//	assistant ingest               # Populate the knowledge corpus
//	assistant models               # List the model catalog
package main

import (
	"github.com/justinpbarnett/portfolio-chat/pkg/assistant/cmd/cmd"
)

// https://goreleaser.com/cookbooks/using-main.version/
//
// main.version: Current Git tag (the v prefix is stripped) or the name of
// the snapshot, if you're using the --snapshot flag
var version = "dev"

func main() {
	cmd.Version = version
	cmd.Execute()
}

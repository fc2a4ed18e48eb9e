// Copyright 2025 Worklens
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

// Package search answers natural-language queries over the embedding index.
//
// The Searcher type implements a cascading multi-granularity algorithm:
//   - The query is embedded once.
//   - An intent signal picks the level order: coarse-first for broad or
//     aggregate questions, fine-first for specific ones.
//   - Levels are queried in order; the first level with hits that survive
//     parent-entity deduplication wins.
//
// A non-cascading Search variant runs a single filtered nearest-neighbor
// query for callers that already know the desired granularity.
package search

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

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/worklens/recall"
	"github.com/worklens/recall/indexing"
)

var sessions = []*indexing.Session{
	{
		ID:              "seed-s1",
		Intention:       "Finish the quarterly report draft and send it for review",
		Review:          "Draft done, review request sent; charts still need polish",
		CyclesPlanned:   4,
		CyclesCompleted: 3,
		MinutesWorked:   95,
	},
	{
		ID:              "seed-s2",
		Intention:       "Clear the support backlog and triage new bug reports",
		Review:          "Backlog down to five tickets, two escalations filed",
		CyclesPlanned:   3,
		CyclesCompleted: 3,
		MinutesWorked:   80,
	},
	{
		ID:              "seed-s3",
		Intention:       "Deep work on the billing refactor",
		CyclesPlanned:   5,
		CyclesCompleted: 2,
		MinutesWorked:   60,
	},
}

var cycles = []*indexing.Cycle{
	{
		ID:           "seed-c1",
		SessionID:    "seed-s1",
		Goal:         "Write the executive summary section",
		FirstStep:    "Reread last quarter's summary for tone",
		Hazards:      "Slack notifications",
		Energy:       "High",
		Morale:       "High",
		Status:       "hit target",
		Noteworthy:   "Found a cleaner framing for the revenue story",
		Distractions: "Two Slack pings",
	},
	{
		ID:          "seed-c2",
		SessionID:   "seed-s1",
		Goal:        "Build the revenue charts",
		FirstStep:   "Export the raw numbers to a spreadsheet",
		Energy:      "Medium",
		Morale:      "Medium",
		Status:      "missed target",
		Improvement: "Prepare the data export before the cycle starts",
	},
	{
		ID:           "seed-c3",
		SessionID:    "seed-s2",
		Goal:         "Triage all new bug reports",
		FirstStep:    "Sort the queue by severity",
		Hazards:      "Rabbit-holing on interesting bugs",
		Energy:       "High",
		Morale:       "Medium",
		Status:       "hit target",
		Distractions: "One phone call",
	},
	{
		ID:         "seed-c4",
		SessionID:  "seed-s3",
		Goal:       "Extract the invoice calculation into its own package",
		FirstStep:  "Write a characterization test for the current behavior",
		Hazards:    "Touching the tax code paths",
		Energy:     "Medium",
		Morale:     "Low",
		Status:     "hit target",
		Noteworthy: "The tax paths are less tangled than feared",
	},
}

var (
	dbPath   = flag.String("db", "./recall_db", "path to the database directory")
	dispatch = flag.Bool("dispatch", false, "run a dispatch pass after seeding")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

func main() {
	db, err := recall.NewDatabase(*dbPath)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	ctx := context.Background()
	total := 0

	for _, session := range sessions {
		ids, err := db.EnqueueSession(ctx, session)
		if err != nil {
			panic(err)
		}
		total += len(ids)
	}
	for _, cycle := range cycles {
		ids, err := db.EnqueueCycle(ctx, cycle)
		if err != nil {
			panic(err)
		}
		total += len(ids)
	}

	slog.Info("seeded embed jobs", "count", total)

	if *dispatch {
		result, err := db.DispatchPending(ctx, total)
		if err != nil {
			panic(err)
		}
		slog.Info("dispatch pass finished",
			"processed", result.Processed, "failed", len(result.Errors))
		for _, itemErr := range result.Errors {
			fmt.Fprintf(os.Stderr, "job %d: %s\n", itemErr.JobID, itemErr.Reason)
		}
	}
}

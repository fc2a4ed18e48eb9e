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

package indexing

import "time"

// Defaults for dispatch configuration.
const (
	// DefaultChunkSize is the provider's practical batch ceiling.
	DefaultChunkSize = 96

	// DefaultMaxRetries bounds the retry controller's attempts per batch.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the base backoff delay, doubled per attempt.
	DefaultRetryDelay = time.Second

	// DefaultMaxRequestsPerMinute caps outbound provider calls per window.
	DefaultMaxRequestsPerMinute = 3000
)

// Config holds tunables for the batch dispatcher and retry controller.
type Config struct {
	ChunkSize            int
	MaxRetries           int
	RetryDelay           time.Duration
	MaxRequestsPerMinute int
}

// DefaultConfig returns a configuration with production defaults.
func DefaultConfig() *Config {
	return &Config{
		ChunkSize:            DefaultChunkSize,
		MaxRetries:           DefaultMaxRetries,
		RetryDelay:           DefaultRetryDelay,
		MaxRequestsPerMinute: DefaultMaxRequestsPerMinute,
	}
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	if c.ChunkSize < 1 {
		return ErrInvalidChunkSize
	}
	if c.MaxRetries < 1 {
		return ErrInvalidMaxAttempts
	}
	if c.MaxRequestsPerMinute < 1 {
		return ErrInvalidRateLimit
	}
	return nil
}

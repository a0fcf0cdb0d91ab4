// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sassoftware/pdf-xtract/logger"
)

type ParsingMode string

const (
	Strict     ParsingMode = "strict"
	BestEffort ParsingMode = "best-effort"
)

type Config struct {
	MaxConcurrentPDFs int           `validate:"min=1,max=10"`
	MaxWorkersPerPDF  int           `validate:"min=1,max=10"`
	WorkerTimeout     time.Duration `validate:"required"`
	ParsingMode       ParsingMode   `validate:"oneof=strict best-effort"`
	MaxRetries        int           `validate:"min=0,max=3"`
	MaxTotalChars     int           `validate:"min=0"`
	// MaxObjectRetrievals caps the cumulative number of indirect references
	// Reader.resolve will follow before failing soft, guarding against a
	// reference cycle in a damaged or adversarial xref table.
	MaxObjectRetrievals int `validate:"min=0"`
	// MaxReconstructionScan caps how many "N G obj" headers the brute-force
	// recovery scan (recover.go) will record for a file whose xref table is
	// missing or unreadable. The processor does not pass this value on:
	// readers it opens use NewReader's built-in limit
	// (defaultMaxReconstructionScan, 200000).
	MaxReconstructionScan int `validate:"min=0"`
	DebugOn               bool
	Logger                logger.LogFunc
	// Metrics           MetricsInterface
}

func NewDefaultConfig() *Config {
	return &Config{
		MaxConcurrentPDFs:     5,
		MaxWorkersPerPDF:      1,
		WorkerTimeout:         5 * time.Second,
		ParsingMode:           BestEffort,
		MaxRetries:            3,
		MaxTotalChars:         0,
		MaxObjectRetrievals:   5000,
		MaxReconstructionScan: 200000,
		DebugOn:               false,
	}
}

func (cfg *Config) Validate() error {
	logger.Debug("Validating Config Object")
	validate := validator.New()
	return validate.Struct(cfg)
}

package core

import (
	"context"

	"go.uber.org/zap"
)

// AnalyzerType distinguishes the families of analysis modules.
type AnalyzerType string

const (
	// TypeStatic analyzers work on source code alone.
	TypeStatic AnalyzerType = "STATIC"
	// TypePattern analyzers match single syntactic shapes without tracking data flow.
	TypePattern AnalyzerType = "PATTERN"
)

// Analyzer is the contract between the scan engine and an individual rule.
// Implementations must be safe for concurrent use: the engine calls Analyze on
// the same instance from several workers, each with its own FileContext.
type Analyzer interface {
	Name() string
	Description() string
	Type() AnalyzerType
	Analyze(ctx context.Context, file *FileContext) ([]Finding, error)
}

// BaseAnalyzer provides the bookkeeping parts of Analyzer. It is meant to be
// embedded by concrete analyzers.
type BaseAnalyzer struct {
	name         string
	description  string
	analyzerType AnalyzerType
	Logger       *zap.Logger
}

// NewBaseAnalyzer creates a BaseAnalyzer with a logger named after the analyzer.
// A nil logger is replaced by a no-op logger.
func NewBaseAnalyzer(name, description string, analyzerType AnalyzerType, logger *zap.Logger) *BaseAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BaseAnalyzer{
		name:         name,
		description:  description,
		analyzerType: analyzerType,
		Logger:       logger.Named(name),
	}
}

// Name returns the analyzer's name.
func (b *BaseAnalyzer) Name() string {
	return b.name
}

// Description returns the analyzer's description.
func (b *BaseAnalyzer) Description() string {
	return b.description
}

// Type returns the analyzer's type.
func (b *BaseAnalyzer) Type() AnalyzerType {
	return b.analyzerType
}

// Copyright 2025 Sonic Labs
// This file is part of Aida Testing Infrastructure for Sonic
//
// Aida is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Aida is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Aida. If not, see <http://www.gnu.org/licenses/>.

package executor

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/0xsoniclabs/tryruntime/chain"
	"github.com/0xsoniclabs/tryruntime/config"
	"github.com/0xsoniclabs/tryruntime/logger"
	"github.com/0xsoniclabs/tryruntime/sandbox"
	"github.com/0xsoniclabs/tryruntime/state"
	"github.com/0xsoniclabs/tryruntime/statesource"
	"github.com/cockroachdb/errors"
	"github.com/jedib0t/go-pretty/v6/table"
)

// OnRuntimeUpgrade executes the migrations of a runtime against a state
// and reports the weight they consume.
type OnRuntimeUpgrade struct {
	cfg      *config.Config
	source   statesource.Source
	states   StateProvider
	pipeline *CallPipeline
	log      logger.Logger
	out      io.Writer
}

func NewOnRuntimeUpgrade(cfg *config.Config, source statesource.Source, states StateProvider, sb sandbox.Sandbox) *OnRuntimeUpgrade {
	return newOnRuntimeUpgrade(cfg, source, states, sb, logger.NewLogger(cfg.LogLevel, "On-Runtime-Upgrade"), os.Stdout)
}

func newOnRuntimeUpgrade(cfg *config.Config, source statesource.Source, states StateProvider, sb sandbox.Sandbox, log logger.Logger, out io.Writer) *OnRuntimeUpgrade {
	return &OnRuntimeUpgrade{
		cfg:      cfg,
		source:   source,
		states:   states,
		pipeline: NewCallPipeline(sb, log),
		log:      log,
		out:      out,
	}
}

// Run builds the state, runs the migrations once and checks their weight
// and idempotency. Every failure is returned.
func (o *OnRuntimeUpgrade) Run(ctx context.Context) error {
	ext, err := o.states.Build(ctx, o.source)
	if err != nil {
		return fmt.Errorf("cannot build state; %w", err)
	}

	o.log.Noticef("Running migrations with checks %v", o.cfg.Checks)
	res, err := o.pipeline.Call(ctx, ext, chain.OnRuntimeUpgradeMethod, o.cfg.Checks.Encode(), sandbox.NoExtensions, o.cfg.ExportProof)
	if err != nil {
		return err
	}
	report, err := DecodeOutput(res, chain.DecodeWeightReport)
	if err != nil {
		return err
	}
	o.log.Infof("%s executed without errors. Consumed weight = (%d ps, %d byte), total weight = (%d ps, %d byte) (%.2f %%, %.2f %%).",
		chain.OnRuntimeUpgradeMethod,
		report.Consumed.RefTime, report.Consumed.ProofSize,
		report.Total.RefTime, report.Total.ProofSize,
		report.RefTimePercent(), report.ProofSizePercent())
	o.printWeights(report)

	if err = o.checkWeight(report); err != nil {
		return err
	}
	if o.cfg.NoIdempotencyChecks {
		return nil
	}
	return o.checkIdempotency(ctx, ext, res)
}

func (o *OnRuntimeUpgrade) printWeights(report chain.WeightReport) {
	t := table.NewWriter()
	t.SetOutputMirror(o.out)
	t.AppendHeader(table.Row{"Dimension", "Consumed", "Total", "Used"})
	t.AppendRow(table.Row{"ref time (ps)", report.Consumed.RefTime, report.Total.RefTime, fmt.Sprintf("%.2f %%", report.RefTimePercent())})
	t.AppendRow(table.Row{"proof size (bytes)", report.Consumed.ProofSize, report.Total.ProofSize, fmt.Sprintf("%.2f %%", report.ProofSizePercent())})
	t.Render()
}

func (o *OnRuntimeUpgrade) checkWeight(report chain.WeightReport) error {
	if !report.Consumed.AnyGt(report.Total) {
		return nil
	}
	if o.cfg.NoWeightWarnings {
		o.log.Warningf("Migrations consume more weight than a block allows (%.2f %%, %.2f %%)", report.RefTimePercent(), report.ProofSizePercent())
		return nil
	}
	return errors.Wrapf(ErrWeightExceeded, "ref time %d of %d, proof size %d of %d",
		report.Consumed.RefTime, report.Total.RefTime, report.Consumed.ProofSize, report.Total.ProofSize)
}

// checkIdempotency runs the migrations a second time on a copy of the
// migrated state. The second run must not change the storage root.
func (o *OnRuntimeUpgrade) checkIdempotency(ctx context.Context, ext *state.Externalities, first *CallResult) error {
	post := ext.Clone()
	diff, err := first.Changes.Drain(post.Backend, post.StateVersion)
	if err != nil {
		return fmt.Errorf("cannot apply migration changes; %w", err)
	}
	post.Apply(diff)
	o.log.Infof("Migrated state root %v, running migrations again", post.Root())

	second, err := o.pipeline.Call(ctx, post, chain.OnRuntimeUpgradeMethod, chain.UpgradeCheckNone.Encode(), sandbox.NoExtensions, "")
	if err != nil {
		return fmt.Errorf("second migration run failed; %w", err)
	}
	again, err := second.Changes.Drain(post.Backend, post.StateVersion)
	if err != nil {
		return fmt.Errorf("cannot compute changes of second migration run; %w", err)
	}
	if again.TransactionRoot != post.Root() {
		return errors.Wrapf(ErrNotIdempotent, "second run changed %d entries, state root %v -> %v",
			again.Transaction.Len(), post.Root(), again.TransactionRoot)
	}
	o.log.Noticef("Migrations are idempotent")
	return nil
}

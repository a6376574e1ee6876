package explore

import (
	"context"
	"time"

	"github.com/lox/ostrobot/internal/classify"
)

// waitForEnergy polls the status until energy is available or maxWait has
// passed. A report showing energy ends the wait early, whatever the timer says.
func (o *Orchestrator) waitForEnergy(ctx context.Context, maxWait time.Duration) error {
	deadline := o.clock.Now().Add(maxWait)
	o.logger.Info("Waiting for energy", "max_wait", maxWait.Round(time.Second))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		left := deadline.Sub(o.clock.Now())
		if left <= 0 {
			break
		}
		if err := o.actor.Sleep(ctx, min(o.cfg.EnergyPollInterval, left)); err != nil {
			return err
		}
		p, err := o.CheckStatus(ctx)
		if err != nil {
			return err
		}
		if p.Energy >= 1 {
			o.tracker.ClearEnergyRegen()
			o.logger.Info("Energy available", "energy", p.Energy, "max_energy", p.MaxEnergy)
			return nil
		}
	}

	o.tracker.ClearEnergyRegen()
	return nil
}

// recoverHP uses the healing item when allowed, otherwise waits for natural
// regeneration and returns as soon as a status poll shows the safety
// threshold reached. A countdown from the last report, plus one poll of
// slack, shortens the wait below MaxHPWait.
func (o *Orchestrator) recoverHP(ctx context.Context) error {
	snap := o.tracker.Snapshot()
	if o.cfg.HealCommand != "" && snap.HPPercent() < o.cfg.HealItemPercent && !o.clock.Now().Before(o.healBlocked) {
		healed, err := o.useHealingItem(ctx)
		if err != nil {
			return err
		}
		if healed {
			_, err := o.CheckStatus(ctx)
			return err
		}
	}

	wait := o.cfg.MaxHPWait
	if left, pending := o.tracker.HPRegenRemaining(); pending {
		wait = min(left+o.cfg.HPPollInterval, wait)
	}
	deadline := o.clock.Now().Add(wait)
	o.logger.Info("Waiting for HP", "hp", snap.HP, "max_hp", snap.MaxHP, "target_percent", o.cfg.MinHPPercent, "max_wait", wait.Round(time.Second))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		left := deadline.Sub(o.clock.Now())
		if left <= 0 {
			o.logger.Warn("HP wait timed out", "hp", o.tracker.Snapshot().HP)
			return nil
		}
		if err := o.actor.Sleep(ctx, min(o.cfg.HPPollInterval, left)); err != nil {
			return err
		}
		if _, err := o.CheckStatus(ctx); err != nil {
			return err
		}
		if s := o.tracker.Snapshot(); s.HPPercent() >= o.cfg.MinHPPercent {
			o.logger.Info("HP recovered", "hp", s.HP, "max_hp", s.MaxHP)
			return nil
		}
	}
}

// useHealingItem sends the healing command and reports whether the reply
// confirmed a restore. A failed attempt blocks retries for HealRetryAfter.
func (o *Orchestrator) useHealingItem(ctx context.Context) (bool, error) {
	mark, err := o.watermark(ctx)
	if err != nil {
		return false, err
	}
	if err := o.actor.Send(ctx, o.cfg.HealCommand); err != nil {
		return false, err
	}
	if err := o.actor.Sleep(ctx, o.cfg.ResponseDelay); err != nil {
		return false, err
	}
	msgs, err := o.actor.Fetch(ctx)
	if err != nil {
		return false, err
	}

	for _, e := range classify.Batch(newer(msgs, mark)) {
		if e.Restored > 0 || e.FullHealHP > 0 {
			o.tracker.Apply(e)
			o.logger.Info("Healing item used", "restored", e.Restored)
			return true, nil
		}
	}

	o.healBlocked = o.clock.Now().Add(o.cfg.HealRetryAfter)
	o.logger.Warn("Healing item had no effect", "retry_after", o.cfg.HealRetryAfter)
	return false, nil
}

// waitForBudget sleeps one bounded interval while the ledger forbids exploring.
func (o *Orchestrator) waitForBudget(ctx context.Context) error {
	var wait time.Duration
	if !o.ledger.IsInWindow() {
		wait = o.ledger.TimeUntilWindow()
		o.logger.Info("Outside the exploration window", "opens_in", wait.Round(time.Minute))
	} else {
		wait = o.ledger.TimeUntilReset()
		o.logger.Info("Daily energy cap reached", "resets_in", wait.Round(time.Minute))
	}
	return o.actor.Sleep(ctx, max(min(wait, o.cfg.BudgetPollInterval), time.Second))
}

package fleet

import (
	"context"
	"fmt"
	"time"

	"github.com/openfroyo/ggfleet/pkg/telemetry"
)

// Poll budget for a single deployment.
const (
	DefaultPollAttempts = 5
	DefaultPollInterval = 2 * time.Second
)

// Outcome is the orchestrator's view of a deployment attempt.
type Outcome string

const (
	// OutcomeSuccess means the control plane reported Success.
	OutcomeSuccess Outcome = "success"

	// OutcomeFailure means the control plane reported Failure.
	OutcomeFailure Outcome = "failure"

	// OutcomeTimedOut means the poll budget ran out before a terminal status.
	// The remote deployment may still be progressing.
	OutcomeTimedOut Outcome = "timed_out"
)

// DeployOutcome describes one deployment attempt.
type DeployOutcome struct {
	Group        Group            `json:"group"`
	Deployment   Deployment       `json:"deployment"`
	Outcome      Outcome          `json:"outcome,omitempty"`
	LastStatus   DeploymentStatus `json:"last_status,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Polls        int              `json:"polls"`
	Waited       time.Duration    `json:"waited"`
	StartedAt    time.Time        `json:"started_at"`
	CompletedAt  time.Time        `json:"completed_at"`
}

// DeployResult is the per-group entry of DeployAll.
type DeployResult struct {
	Group   Group          `json:"group"`
	Outcome *DeployOutcome `json:"outcome,omitempty"`
	Err     error          `json:"-"`
}

// DeployerConfig holds the poll budget.
type DeployerConfig struct {
	Attempts int
	Interval time.Duration
}

// DeployerOption customizes a Deployer.
type DeployerOption func(*Deployer)

// WithSleep replaces the blocking wait between status polls.
func WithSleep(fn func(time.Duration)) DeployerOption {
	return func(d *Deployer) {
		d.sleep = fn
	}
}

// WithAdmission sets a check run before a deployment is created. A group it
// rejects is not deployed and the error is returned to the caller.
func WithAdmission(fn func(context.Context, Group) error) DeployerOption {
	return func(d *Deployer) {
		d.admit = fn
	}
}

// Deployer triggers group deployments and polls them to a terminal state or
// until the poll budget is exhausted.
type Deployer struct {
	plane    ControlPlane
	resolver *Resolver
	tel      *telemetry.Telemetry
	logger   *telemetry.Logger
	cfg      DeployerConfig
	sleep    func(time.Duration)
	admit    func(context.Context, Group) error
}

// NewDeployer creates a deployer. Zero values in cfg fall back to the defaults.
func NewDeployer(plane ControlPlane, tel *telemetry.Telemetry, cfg DeployerConfig, opts ...DeployerOption) *Deployer {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultPollAttempts
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	d := &Deployer{
		plane:    plane,
		resolver: NewResolver(plane),
		tel:      tel,
		logger:   tel.Logger.NewComponentLogger("deployer"),
		cfg:      cfg,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DeployByName resolves a group by name and deploys it.
// Lookup failures are returned to the caller.
func (d *Deployer) DeployByName(ctx context.Context, name string) (*DeployOutcome, error) {
	group, err := d.resolver.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	return d.Deploy(ctx, group)
}

// Deploy creates a new deployment of the group's latest version and polls its
// status. A timeout is reported as OutcomeTimedOut, not as an error.
// Control-plane errors are returned; the outcome is non-nil once the
// deployment has been created.
func (d *Deployer) Deploy(ctx context.Context, group Group) (*DeployOutcome, error) {
	// The poll sequence runs to completion or to its budget once started.
	ctx = context.WithoutCancel(ctx)

	ctx, span := d.tel.Tracer.StartDeploySpan(ctx, group.Name, group.ID)
	defer span.End()

	logger := d.logger.WithGroup(group.Name)

	if d.admit != nil {
		if err := d.admit(ctx, group); err != nil {
			telemetry.RecordError(span, err)
			d.tel.Metrics.RecordDeployment("rejected", 0, 0)
			logger.WithError(err).Warn("Deployment rejected")
			return nil, fmt.Errorf("deployment of group %s rejected: %w", group.Name, err)
		}
	}

	logger.Infof("Deploying group '%s'", group.Name)

	out := &DeployOutcome{
		Group: group,
		Deployment: Deployment{
			GroupID:        group.ID,
			GroupVersionID: group.LatestVersion,
			DeploymentType: DeploymentTypeNew,
		},
		StartedAt: time.Now(),
	}

	id, err := d.plane.CreateDeployment(ctx, group.ID, group.LatestVersion, DeploymentTypeNew)
	if err != nil {
		telemetry.RecordError(span, err)
		d.tel.Metrics.RecordDeployment("error", 0, time.Since(out.StartedAt))
		return nil, fmt.Errorf("failed to create deployment for group %s: %w", group.Name, err)
	}
	out.Deployment.DeploymentID = id
	span.SetAttributes(telemetry.AttrDeploymentID.String(id))
	logger = logger.WithDeploymentID(id)

	err = d.poll(ctx, out, logger)
	out.CompletedAt = time.Now()
	span.SetAttributes(telemetry.AttrPolls.Int(out.Polls))

	if err != nil {
		telemetry.RecordError(span, err)
		d.tel.Metrics.RecordDeployment("error", out.Polls, out.CompletedAt.Sub(out.StartedAt))
		return out, fmt.Errorf("failed to poll deployment %s of group %s: %w", id, group.Name, err)
	}

	span.SetAttributes(telemetry.AttrOutcome.String(string(out.Outcome)))
	telemetry.RecordSuccess(span)
	d.tel.Metrics.RecordDeployment(string(out.Outcome), out.Polls, out.CompletedAt.Sub(out.StartedAt))
	return out, nil
}

// poll queries the deployment status up to the attempt budget, waiting the
// configured interval between attempts.
func (d *Deployer) poll(ctx context.Context, out *DeployOutcome, logger *telemetry.Logger) error {
	for attempt := 1; attempt <= d.cfg.Attempts; attempt++ {
		if attempt > 1 {
			d.sleep(d.cfg.Interval)
			out.Waited += d.cfg.Interval
		}

		state, err := d.plane.GetDeploymentStatus(ctx, out.Group.ID, out.Deployment.DeploymentID)
		if err != nil {
			return err
		}
		out.Polls++
		out.LastStatus = state.Status

		logger.Debugf("--- deploying... status: %s", state.Status)

		if !state.Status.IsTerminal() {
			continue
		}
		if state.Status == DeploymentStatusSuccess {
			out.Outcome = OutcomeSuccess
			logger.Info("--- SUCCESS!")
			return nil
		}
		out.Outcome = OutcomeFailure
		out.ErrorMessage = state.ErrorMessage
		logger.Errorf("--- ERROR! %s", state.ErrorMessage)
		return nil
	}

	out.Outcome = OutcomeTimedOut
	logger.Warnf("--- Gave up waiting for deployment of group %s. Please check the status later. "+
		"Make sure the core is running, connected to network, and the certificates match.", out.Group.Name)
	return nil
}

// DeployAll deploys every group in the listing, one after another. A failed,
// timed-out or erroring group never stops the remaining groups.
func (d *Deployer) DeployAll(ctx context.Context) ([]DeployResult, error) {
	groups, err := d.plane.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	results := make([]DeployResult, 0, len(groups))
	for _, g := range groups {
		out, err := d.Deploy(ctx, g)
		if err != nil {
			d.logger.WithGroup(g.Name).WithError(err).Error("Deployment did not complete")
		}
		results = append(results, DeployResult{Group: g, Outcome: out, Err: err})
	}
	return results, nil
}

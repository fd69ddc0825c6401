// Package fleettest provides an in-memory fleet.ControlPlane for tests.
//
// Plane enforces the same ordering rules as the real control plane: active
// certificates, attached policies, things with principals and groups with
// deployments cannot be deleted.
package fleettest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/openfroyo/ggfleet/pkg/fleet"
)

var (
	_ fleet.ControlPlane = (*Plane)(nil)
	_ fleet.ShadowReader = (*Plane)(nil)
)

// Call is one recorded control-plane call.
type Call struct {
	Op   string
	Args []string
}

// Plane is an in-memory control plane.
type Plane struct {
	mu sync.Mutex

	groups      []fleet.Group
	deployed    map[string]bool // group id -> has deployments
	coreDefs    []fleet.CoreDefinition
	things      map[string][]string // thing -> principal ARNs
	certs       map[string]fleet.CertificateStatus
	policies    map[string]map[string]bool // policy -> attached principals
	scripts     map[string][]fleet.DeploymentState
	deployments map[string]string // deployment id -> group id
	cursor      map[string]int    // deployment id -> next script index
	shadows     map[string][]byte
	failures    map[string]error
	nextID      int

	calls []Call
}

// NewPlane returns an empty control plane.
func NewPlane() *Plane {
	return &Plane{
		deployed:    make(map[string]bool),
		things:      make(map[string][]string),
		certs:       make(map[string]fleet.CertificateStatus),
		policies:    make(map[string]map[string]bool),
		scripts:     make(map[string][]fleet.DeploymentState),
		deployments: make(map[string]string),
		cursor:      make(map[string]int),
		shadows:     make(map[string][]byte),
		failures:    make(map[string]error),
	}
}

// CertARN returns the principal ARN of a certificate id.
func CertARN(certID string) string {
	return "arn:aws:iot:us-east-1:123456789012:cert/" + certID
}

// AddGroup registers a bare group and returns it.
func (p *Plane) AddGroup(name string) fleet.Group {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	g := fleet.Group{
		ID:            fmt.Sprintf("group-%d", p.nextID),
		Name:          name,
		LatestVersion: fmt.Sprintf("version-%d", p.nextID),
	}
	p.groups = append(p.groups, g)
	return g
}

// Provision registers a group the way the provisioner creates it: the group,
// its core definition, its core thing with one active certificate per id, and
// the core policy attached to every certificate.
func (p *Plane) Provision(name string, certIDs ...string) fleet.Group {
	g := p.AddGroup(name)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	p.coreDefs = append(p.coreDefs, fleet.CoreDefinition{
		ID:   fmt.Sprintf("coredef-%d", p.nextID),
		Name: fleet.CoreDefinitionName(name),
	})

	thing := fleet.CoreThingName(name)
	policy := fleet.CorePolicyName(thing)
	p.things[thing] = nil
	p.policies[policy] = make(map[string]bool)
	for _, id := range certIDs {
		arn := CertARN(id)
		p.certs[id] = fleet.CertificateStatusActive
		p.things[thing] = append(p.things[thing], arn)
		p.policies[policy][arn] = true
	}
	return g
}

// AddCoreDefinition registers a core definition with an arbitrary name.
func (p *Plane) AddCoreDefinition(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.coreDefs = append(p.coreDefs, fleet.CoreDefinition{ID: fmt.Sprintf("coredef-%d", p.nextID), Name: name})
}

// SetShadow stores the shadow document of a thing.
func (p *Plane) SetShadow(thingName string, doc []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shadows[thingName] = doc
}

// ScriptStatuses sets the status sequence returned for deployments of a
// group. The last entry repeats once the sequence is exhausted. Without a
// script every deployment reports Success.
func (p *Plane) ScriptStatuses(groupID string, states ...fleet.DeploymentState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[groupID] = states
}

// FailOn makes every call of op return err.
func (p *Plane) FailOn(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op] = err
}

// Calls returns the recorded calls.
func (p *Plane) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

// CallCount returns how often op was called.
func (p *Plane) CallCount(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Ops returns the recorded operation names in call order.
func (p *Plane) Ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ops := make([]string, len(p.calls))
	for i, c := range p.calls {
		ops[i] = c.Op
	}
	return ops
}

// HasGroup reports whether a group with the name exists.
func (p *Plane) HasGroup(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.findGroupByName(name) >= 0
}

// HasThing reports whether the thing exists.
func (p *Plane) HasThing(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.things[name]
	return ok
}

// HasCertificate reports whether the certificate exists.
func (p *Plane) HasCertificate(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.certs[id]
	return ok
}

// HasPolicy reports whether the policy exists.
func (p *Plane) HasPolicy(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.policies[name]
	return ok
}

// record logs the call and returns the injected failure for op, if any.
func (p *Plane) record(op string, args ...string) error {
	p.calls = append(p.calls, Call{Op: op, Args: args})
	return p.failures[op]
}

func (p *Plane) findGroupByName(name string) int {
	return slices.IndexFunc(p.groups, func(g fleet.Group) bool { return g.Name == name })
}

func (p *Plane) findGroupByID(id string) int {
	return slices.IndexFunc(p.groups, func(g fleet.Group) bool { return g.ID == id })
}

func notFound(op, resource string) error {
	return fleet.NotFound(op, resource, errors.New("resource does not exist"))
}

func conflict(op, resource, msg string) error {
	return fleet.Remote(op, resource, errors.New(msg))
}

// ListGroups implements fleet.ControlPlane.
func (p *Plane) ListGroups(_ context.Context) ([]fleet.Group, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("ListGroups"); err != nil {
		return nil, err
	}
	return slices.Clone(p.groups), nil
}

// CreateDeployment implements fleet.ControlPlane.
func (p *Plane) CreateDeployment(_ context.Context, groupID, groupVersionID string, typ fleet.DeploymentType) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("CreateDeployment", groupID, groupVersionID, string(typ)); err != nil {
		return "", err
	}
	if p.findGroupByID(groupID) < 0 {
		return "", notFound("CreateDeployment", groupID)
	}
	p.nextID++
	id := fmt.Sprintf("deployment-%d", p.nextID)
	p.deployments[id] = groupID
	p.deployed[groupID] = true
	return id, nil
}

// GetDeploymentStatus implements fleet.ControlPlane.
func (p *Plane) GetDeploymentStatus(_ context.Context, groupID, deploymentID string) (fleet.DeploymentState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("GetDeploymentStatus", groupID, deploymentID); err != nil {
		return fleet.DeploymentState{}, err
	}
	if p.deployments[deploymentID] != groupID {
		return fleet.DeploymentState{}, notFound("GetDeploymentStatus", deploymentID)
	}
	script := p.scripts[groupID]
	if len(script) == 0 {
		return fleet.DeploymentState{Status: fleet.DeploymentStatusSuccess}, nil
	}
	i := p.cursor[deploymentID]
	if i >= len(script) {
		i = len(script) - 1
	}
	p.cursor[deploymentID]++
	return script[i], nil
}

// ResetDeployments implements fleet.ControlPlane.
func (p *Plane) ResetDeployments(_ context.Context, groupID string, force bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("ResetDeployments", groupID, fmt.Sprint(force)); err != nil {
		return err
	}
	if p.findGroupByID(groupID) < 0 {
		return notFound("ResetDeployments", groupID)
	}
	delete(p.deployed, groupID)
	return nil
}

// DeleteGroup implements fleet.ControlPlane.
func (p *Plane) DeleteGroup(_ context.Context, groupID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("DeleteGroup", groupID); err != nil {
		return err
	}
	i := p.findGroupByID(groupID)
	if i < 0 {
		return notFound("DeleteGroup", groupID)
	}
	if p.deployed[groupID] {
		return conflict("DeleteGroup", groupID, "group has active deployments")
	}
	p.groups = slices.Delete(p.groups, i, i+1)
	return nil
}

// ListCoreDefinitions implements fleet.ControlPlane.
func (p *Plane) ListCoreDefinitions(_ context.Context) ([]fleet.CoreDefinition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("ListCoreDefinitions"); err != nil {
		return nil, err
	}
	return slices.Clone(p.coreDefs), nil
}

// DeleteCoreDefinition implements fleet.ControlPlane.
func (p *Plane) DeleteCoreDefinition(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("DeleteCoreDefinition", id); err != nil {
		return err
	}
	i := slices.IndexFunc(p.coreDefs, func(d fleet.CoreDefinition) bool { return d.ID == id })
	if i < 0 {
		return notFound("DeleteCoreDefinition", id)
	}
	p.coreDefs = slices.Delete(p.coreDefs, i, i+1)
	return nil
}

// ListThingPrincipals implements fleet.ControlPlane.
func (p *Plane) ListThingPrincipals(_ context.Context, thingName string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("ListThingPrincipals", thingName); err != nil {
		return nil, err
	}
	principals, ok := p.things[thingName]
	if !ok {
		return nil, notFound("ListThingPrincipals", thingName)
	}
	return slices.Clone(principals), nil
}

// DetachPolicy implements fleet.ControlPlane.
func (p *Plane) DetachPolicy(_ context.Context, principalARN, policyName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("DetachPolicy", principalARN, policyName); err != nil {
		return err
	}
	attached, ok := p.policies[policyName]
	if !ok {
		return notFound("DetachPolicy", policyName)
	}
	delete(attached, principalARN)
	return nil
}

// DetachThingPrincipal implements fleet.ControlPlane.
func (p *Plane) DetachThingPrincipal(_ context.Context, thingName, principalARN string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("DetachThingPrincipal", thingName, principalARN); err != nil {
		return err
	}
	principals, ok := p.things[thingName]
	if !ok {
		return notFound("DetachThingPrincipal", thingName)
	}
	p.things[thingName] = slices.DeleteFunc(principals, func(s string) bool { return s == principalARN })
	return nil
}

// UpdateCertificateStatus implements fleet.ControlPlane.
func (p *Plane) UpdateCertificateStatus(_ context.Context, certID string, status fleet.CertificateStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("UpdateCertificate", certID, string(status)); err != nil {
		return err
	}
	if _, ok := p.certs[certID]; !ok {
		return notFound("UpdateCertificate", certID)
	}
	p.certs[certID] = status
	return nil
}

// DeleteCertificate implements fleet.ControlPlane.
func (p *Plane) DeleteCertificate(_ context.Context, certID string, force bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("DeleteCertificate", certID, fmt.Sprint(force)); err != nil {
		return err
	}
	status, ok := p.certs[certID]
	if !ok {
		return notFound("DeleteCertificate", certID)
	}
	if status == fleet.CertificateStatusActive {
		return conflict("DeleteCertificate", certID, "certificate is active")
	}
	delete(p.certs, certID)
	return nil
}

// DeletePolicy implements fleet.ControlPlane.
func (p *Plane) DeletePolicy(_ context.Context, policyName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("DeletePolicy", policyName); err != nil {
		return err
	}
	attached, ok := p.policies[policyName]
	if !ok {
		return notFound("DeletePolicy", policyName)
	}
	if len(attached) > 0 {
		return conflict("DeletePolicy", policyName, "policy is attached to principals")
	}
	delete(p.policies, policyName)
	return nil
}

// DeleteThing implements fleet.ControlPlane.
func (p *Plane) DeleteThing(_ context.Context, thingName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("DeleteThing", thingName); err != nil {
		return err
	}
	principals, ok := p.things[thingName]
	if !ok {
		return notFound("DeleteThing", thingName)
	}
	if len(principals) > 0 {
		return conflict("DeleteThing", thingName, "thing has attached principals")
	}
	delete(p.things, thingName)
	return nil
}

// GetThingShadow implements fleet.ShadowReader.
func (p *Plane) GetThingShadow(_ context.Context, thingName string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("GetThingShadow", thingName); err != nil {
		return nil, err
	}
	doc, ok := p.shadows[thingName]
	if !ok {
		return nil, notFound("GetThingShadow", thingName)
	}
	return slices.Clone(doc), nil
}

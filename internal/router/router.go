// Package router turns delivered publishes into objects and states.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/life-stream-dev/router-telemetry-broker/internal/database"
	"github.com/life-stream-dev/router-telemetry-broker/internal/history"
	"github.com/life-stream-dev/router-telemetry-broker/internal/logger"
	"github.com/life-stream-dev/router-telemetry-broker/internal/session"
	"github.com/life-stream-dev/router-telemetry-broker/internal/topics"
)

const (
	IdentityTopic   = "router/id"
	ConnectionState = "info.connection"
	AliveState      = "alive"
)

var (
	aliveCommon = database.Common{
		Name:  "Connected",
		Type:  "boolean",
		Role:  "indicator.connected",
		Read:  true,
		Write: false,
	}
	connectionCommon = database.Common{
		Name:  "Connected clients",
		Type:  "string",
		Role:  "info.connection",
		Read:  true,
		Write: false,
	}
)

type Router struct {
	store    database.StateStore
	objects  *database.ObjectCache
	catalog  *topics.Catalog
	registry *session.Registry
	history  history.Recorder

	onIdentity func()
}

// New builds a router. A nil recorder disables history.
func New(store database.StateStore, objects *database.ObjectCache, catalog *topics.Catalog, registry *session.Registry, recorder history.Recorder) *Router {
	if recorder == nil {
		recorder = history.Nop{}
	}
	return &Router{
		store:      store,
		objects:    objects,
		catalog:    catalog,
		registry:   registry,
		history:    recorder,
		onIdentity: func() {},
	}
}

// OnIdentity registers fn to run every time a device announces its serial.
func (r *Router) OnIdentity(fn func()) {
	r.onIdentity = fn
}

// Deliver handles one accepted publish of s. Store failures are logged and
// never returned, the publish is simply not recorded.
func (r *Router) Deliver(ctx context.Context, s *session.Session, topic string, payload []byte) {
	value := string(payload)
	logger.DebugF("Client [%s] received: %s = %s", s.ClientID, topic, value)

	if topic == IdentityTopic {
		r.onDeviceIdentity(ctx, s, value)
	} else {
		r.onTelemetryPublish(ctx, s, topic, value)
	}

	if err := r.UpdateAlive(ctx, s, true); err != nil {
		logger.ErrorF("Client [%s] fail to update alive state, details: %v", s.ClientID, err)
	}
}

func (r *Router) onDeviceIdentity(ctx context.Context, s *session.Session, serial string) {
	if serial == "" {
		logger.WarnF("Client [%s] sent an empty %s", s.ClientID, IdentityTopic)
		return
	}
	s.SetDeviceID(serial)

	err := r.objects.EnsureObject(ctx, r.store, &database.Object{
		ID:   serial,
		Type: database.ObjectTypeChannel,
		Common: database.Common{
			Name: s.ClientID,
			Desc: "Teltonika Router " + serial,
		},
	})
	if err != nil {
		logger.ErrorF("Client [%s] fail to create device channel %s, details: %v", s.ClientID, serial, err)
	}

	r.onIdentity()
}

func topicName(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

func (r *Router) onTelemetryPublish(ctx context.Context, s *session.Session, topic, raw string) {
	name := topicName(topic)
	entry, ok := r.catalog.Lookup(name)
	deviceID := s.DeviceID()
	if !ok || deviceID == "" {
		logger.WarnF("Client [%s] received unknown variable \"%s\": %s", s.ClientID, topic, raw)
		return
	}

	s.MarkReceived(name)
	value := entry.Value(raw)
	path := deviceID + "." + name
	if err := r.writeState(ctx, path, entry.Common, value); err != nil {
		logger.ErrorF("Client [%s] fail to store %s, details: %v", s.ClientID, path, err)
		return
	}
	r.history.Record(deviceID, name, value)

	if name != topics.UptimeTopic {
		return
	}
	seconds, ok := value.(float64)
	if !ok {
		return
	}
	path = deviceID + "." + topics.UptimeStrState
	if err := r.writeState(ctx, path, topics.UptimeStrCommon, topics.FormatUptime(seconds)); err != nil {
		logger.ErrorF("Client [%s] fail to store %s, details: %v", s.ClientID, path, err)
	}
}

// writeState ensures the state object at path and stores value as
// acknowledged.
func (r *Router) writeState(ctx context.Context, path string, common database.Common, value any) error {
	err := r.objects.EnsureObject(ctx, r.store, &database.Object{
		ID:     path,
		Type:   database.ObjectTypeState,
		Common: common,
	})
	if err != nil {
		return err
	}
	return r.store.SetState(ctx, path, value, true)
}

// UpdateAlive writes the alive flag of a device that announced its serial,
// and only when the flag changes.
func (r *Router) UpdateAlive(ctx context.Context, s *session.Session, alive bool) error {
	deviceID := s.DeviceID()
	if deviceID == "" {
		return nil
	}
	return s.WriteAlive(alive, func(alive bool) error {
		if err := r.writeState(ctx, deviceID+"."+AliveState, aliveCommon, alive); err != nil {
			return fmt.Errorf("write %s.%s: %w", deviceID, AliveState, err)
		}
		return nil
	})
}

// UpdateConnectivity rewrites the summary of registered client ids.
func (r *Router) UpdateConnectivity(ctx context.Context) error {
	summary := strings.Join(r.registry.ClientIDs(), ",")
	if err := r.writeState(ctx, ConnectionState, connectionCommon, summary); err != nil {
		return fmt.Errorf("write %s: %w", ConnectionState, err)
	}
	return nil
}

// ResetAlive marks every stored alive flag false, it runs once at startup.
func (r *Router) ResetAlive(ctx context.Context) error {
	paths, err := r.store.ListStates(ctx, AliveState)
	if err != nil {
		return fmt.Errorf("list alive states: %w", err)
	}
	var errs []error
	for _, path := range paths {
		if err := r.store.SetState(ctx, path, false, true); err != nil {
			errs = append(errs, fmt.Errorf("reset %s: %w", path, err))
		}
	}
	if len(paths) > 0 {
		logger.InfoF("Reset %d alive states", len(paths))
	}
	return errors.Join(errs...)
}

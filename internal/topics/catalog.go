// Package topics holds the telemetry topics a router can be asked for, the
// object descriptor each one is stored under and how its raw value is
// converted.
package topics

import (
	"slices"

	"github.com/life-stream-dev/router-telemetry-broker/internal/database"
)

// Converter turns a raw payload into the stored value. A nil result is the
// "no value" reading and is still written.
type Converter func(raw string) any

type Topic struct {
	Name    string
	Common  database.Common
	Devices []string
	Convert Converter
}

// Value converts raw with the topic converter or returns raw unchanged.
func (t *Topic) Value(raw string) any {
	if t.Convert == nil {
		return raw
	}
	return t.Convert(raw)
}

// SupportedBy reports whether routerType lists this topic. An empty
// routerType matches every topic.
func (t *Topic) SupportedBy(routerType string) bool {
	return routerType == "" || slices.Contains(t.Devices, routerType)
}

var (
	allRouters   = []string{"RUT2", "RUT9", "RUTX", "RUT3", "RUT1", "TRB1", "TRB2", "TRB5", "OTD", "RUTM", "RUTC"}
	noTRB1       = []string{"RUT2", "RUT9", "RUTX", "RUT3", "RUT1", "TRB2", "TRB5", "OTD", "RUTM", "RUTC"}
	pinCapable   = []string{"RUT1", "RUT2", "RUT9", "RUTX", "RUT3", "TRB1", "TRB2", "TRB5", "RUTM"}
	analogRouter = []string{"RUT9", "TRB2", "TRB141"}
)

// Catalog is ordered, polling walks it front to back.
type Catalog struct {
	topics []*Topic
	index  map[string]*Topic
}

func NewCatalog(topics []*Topic) *Catalog {
	c := &Catalog{topics: topics, index: make(map[string]*Topic, len(topics))}
	for _, t := range topics {
		c.index[t.Name] = t
	}
	return c
}

func (c *Catalog) Lookup(name string) (*Topic, bool) {
	t, ok := c.index[name]
	return t, ok
}

func (c *Catalog) Topics() []*Topic {
	return c.topics
}

// Names returns the topic names supported by routerType in catalog order.
func (c *Catalog) Names(routerType string) []string {
	names := make([]string, 0, len(c.topics))
	for _, t := range c.topics {
		if t.SupportedBy(routerType) {
			names = append(names, t.Name)
		}
	}
	return names
}

func state(name, desc, valueType, role, unit string) database.Common {
	return database.Common{
		Name:  name,
		Desc:  desc,
		Type:  valueType,
		Role:  role,
		Unit:  unit,
		Read:  true,
		Write: false,
	}
}

// Default returns the catalog of Teltonika router telemetry topics.
func Default() *Catalog {
	return NewCatalog([]*Topic{
		{
			Name:    "id",
			Common:  state("Modem IMEI", "", "string", "info.identifier", ""),
			Devices: noTRB1,
		},
		{
			Name:    "temperature",
			Common:  state("Module Temperature", "Temperature of the module in degrees Celsius", "number", "value.temperature", "°C"),
			Devices: noTRB1,
			Convert: ConvertTemperature,
		},
		{
			Name:    "operator",
			Common:  state("Network Operator", "Current operator’s name", "string", "info.operator", ""),
			Devices: allRouters,
		},
		{
			Name:    "signal",
			Common:  state("Signal Strength", "Signal strength in dBm", "number", "value.signal", "dBm"),
			Devices: allRouters,
			Convert: ConvertSignal,
		},
		{
			Name:    "network",
			Common:  state("Network State", "Current network state", "string", "info.status", ""),
			Devices: allRouters,
		},
		{
			Name:    "connection",
			Common:  state("Connection Type", "Current connection type (2G, 3G, 4G)", "string", "info.status", ""),
			Devices: allRouters,
		},
		{
			Name:    "wan",
			Common:  state("WAN IP Address", "Current WAN IP address", "string", "info.ip", ""),
			Devices: allRouters,
		},
		{
			Name:    UptimeTopic,
			Common:  state("System Uptime", "", "number", "value.interval", "sec"),
			Devices: allRouters,
			Convert: ConvertUptime,
		},
		{
			Name:    "name",
			Common:  state("Device Code", "", "string", "info.name", ""),
			Devices: allRouters,
		},
		{
			Name:    "digital1",
			Common:  state("Digital Input 1", "", "boolean", "state", ""),
			Devices: []string{"RUT9"},
			Convert: ConvertDigital,
		},
		{
			Name:    "digital2",
			Common:  state("Digital Input 2", "", "boolean", "sensor", ""),
			Devices: []string{"RUT9"},
			Convert: ConvertDigital,
		},
		{
			Name:    "analog",
			Common:  state("Analog Input", "", "number", "value", ""),
			Devices: analogRouter,
			Convert: ConvertAnalog,
		},
		{
			Name:    "pin2",
			Common:  state("Pin2", "", "string", "state", ""),
			Devices: []string{"TRB2"},
			Convert: ConvertPin,
		},
		{
			Name:    "pin3",
			Common:  state("Pin3", "", "string", "state", ""),
			Devices: pinCapable,
			Convert: ConvertPin,
		},
		{
			Name:    "pin4",
			Common:  state("Pin4", "", "string", "state", ""),
			Devices: pinCapable,
			Convert: ConvertPin,
		},
	})
}

// Package plugins hosts business modules installed into a portal registry.
// It contains no runtime code itself; the architecture test alongside it
// keeps modules on the public surface.
//
// A module may import bizcore/pkg/... and bizcore/internal/dataaccess for the
// SQL scope of its handlers. Every other internal package is off limits so
// that modules stay independent of transport and dispatch choices.
package plugins

// Package link provides loader.Port implementations over local serial
// devices and network transports.
package link

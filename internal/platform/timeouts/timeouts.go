// Package timeouts defines shared timeout constants used across gopob.
package timeouts

import "time"

// Transfer caps one sub-script HTTP transfer made by the network shim.
const Transfer = 60 * time.Second

// SQLiteBusy is how long a build library connection waits on a locked
// database.
const SQLiteBusy = 5 * time.Second

// Shutdown limits how long commands wait for telemetry to flush on exit.
const Shutdown = 5 * time.Second

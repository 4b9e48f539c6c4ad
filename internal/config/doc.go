// Package config loads instance configuration files.
//
// A configuration file is YAML (.yaml, .yml) or CUE (.cue). Both carry the
// same fields:
//
//	identity: robot-dashboard
//	mode: client            # server | client | standalone
//	server:
//	  listen_address: ""
//	  port: 1735
//	  persist_file: networktables.db
//	client:
//	  servers: ["10.2.94.2", "localhost:1735"]
//	  team: 0
//	  port: 0
//	update_rate: 0.1
//	log_level: info
//
// CUE files are unified with a closed schema, so unknown fields and
// out-of-range ports are reported with their CUE position. YAML files are
// decoded with unknown fields rejected.
package config

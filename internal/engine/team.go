package engine

import "fmt"

// TeamServers returns the addresses a robot of the given team may be
// reached at, in the order a client tries them. A port of 0 selects
// DefaultPort.
func TeamServers(team, port int) []ServerPort {
	if port == 0 {
		port = DefaultPort
	}
	hosts := []string{
		fmt.Sprintf("10.%d.%d.2", team/100, team%100),
		fmt.Sprintf("roboRIO-%d-FRC.local", team),
		"172.22.11.2",
		fmt.Sprintf("roboRIO-%d-FRC.lan", team),
		fmt.Sprintf("roboRIO-%d-FRC.frc-field.local", team),
	}
	servers := make([]ServerPort, len(hosts))
	for i, h := range hosts {
		servers[i] = ServerPort{Host: h, Port: port}
	}
	return servers
}

// Package settings loads the INI-style configuration file describing
// one or more sessions: one optional [DEFAULT] section whose keys seed
// every [SESSION] section, and any number of per-session sections.
// Section and key names are matched case-insensitively.
package settings

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// ConnectionType distinguishes the two session roles.
type ConnectionType int

const (
	Initiator ConnectionType = iota
	Acceptor
)

// Session holds one fully-resolved session configuration, after
// [DEFAULT] inheritance and default-value derivation.
type Session struct {
	Name string

	ConnectionType ConnectionType
	Username       string
	Password       string
	SenderCompID   string
	TargetCompID   string

	SocketConnectHost string
	SocketConnectPort int
	SocketAcceptPort  int

	ReceiveBufferSize int
	SendBufferSize    int
	ReconnectInterval int

	FileStorePath string
	FileLogPath   string

	Firm string
}

// Load parses path and returns one Session per non-DEFAULT section,
// applying [DEFAULT] inheritance and the identity-default rules
// (initiator sender = username; acceptor target = username, sender =
// "OUCH"). It rejects duplicate sender/target pairs.
func Load(path string) ([]Session, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, path)
	if err != nil {
		return nil, fmt.Errorf("settings: load %s: %w", path, err)
	}

	var sessions []Session
	seen := make(map[string]bool)

	def := cfg.Section(ini.DEFAULT_SECTION)
	for _, sec := range cfg.Sections() {
		if strings.EqualFold(sec.Name(), ini.DEFAULT_SECTION) {
			continue
		}
		for _, k := range def.Keys() {
			if !sec.HasKey(k.Name()) {
				if _, err := sec.NewKey(k.Name(), k.Value()); err != nil {
					return nil, fmt.Errorf("settings: section %s: %w", sec.Name(), err)
				}
			}
		}
		s, err := buildSession(sec)
		if err != nil {
			return nil, fmt.Errorf("settings: section %s: %w", sec.Name(), err)
		}
		key := strings.ToLower(s.SenderCompID + "->" + s.TargetCompID)
		if seen[key] {
			return nil, fmt.Errorf("settings: duplicate sender/target pair %s->%s", s.SenderCompID, s.TargetCompID)
		}
		seen[key] = true
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func buildSession(sec *ini.Section) (Session, error) {
	s := Session{Name: sec.Name(), ReconnectInterval: 15}

	connType := strings.ToLower(sec.Key("ConnectionType").String())
	switch connType {
	case "initiator", "client":
		s.ConnectionType = Initiator
	case "acceptor", "server":
		s.ConnectionType = Acceptor
	default:
		return s, fmt.Errorf("missing or invalid ConnectionType %q", connType)
	}

	s.Username = sec.Key("Username").String()
	s.Password = sec.Key("Password").String()
	if s.Username == "" || s.Password == "" {
		return s, fmt.Errorf("Username and Password are required")
	}

	s.SenderCompID = sec.Key("SenderCompId").String()
	s.TargetCompID = sec.Key("TargetCompId").String()
	switch s.ConnectionType {
	case Initiator:
		if s.SenderCompID == "" {
			s.SenderCompID = s.Username
		}
	case Acceptor:
		if s.TargetCompID == "" {
			s.TargetCompID = s.Username
		}
		if s.SenderCompID == "" {
			s.SenderCompID = "OUCH"
		}
	}

	s.SocketConnectHost = sec.Key("SocketConnectHost").String()
	if v := sec.Key("SocketConnectPort").String(); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return s, fmt.Errorf("invalid SocketConnectPort %q: %w", v, err)
		}
		s.SocketConnectPort = p
	}
	if v := sec.Key("SocketAcceptPort").String(); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return s, fmt.Errorf("invalid SocketAcceptPort %q: %w", v, err)
		}
		s.SocketAcceptPort = p
	}

	if s.ConnectionType == Initiator && (s.SocketConnectHost == "" || s.SocketConnectPort == 0) {
		return s, fmt.Errorf("initiator requires SocketConnectHost and SocketConnectPort")
	}
	if s.ConnectionType == Acceptor && s.SocketAcceptPort == 0 {
		return s, fmt.Errorf("acceptor requires SocketAcceptPort")
	}

	s.ReceiveBufferSize = sec.Key("ReceiveBufferSize").MustInt(0)
	s.SendBufferSize = sec.Key("SendBufferSize").MustInt(0)
	s.ReconnectInterval = sec.Key("ReconnectInterval").MustInt(15)

	s.FileStorePath = sec.Key("FileStorePath").String()
	s.FileLogPath = sec.Key("FileLogPath").String()
	s.Firm = sec.Key("Firm").String()

	return s, nil
}

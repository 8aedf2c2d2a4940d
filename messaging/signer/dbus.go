package signer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/nbd-wtf/go-nostr"
)

const (
	DBusService    = "com.plebsigner.Signer"
	DBusObjectPath = "/com/plebsigner/Signer"
	DBusInterface  = "com.plebsigner.Signer1"
)

// DBusSigner is a desktop signer on the session bus. It is the in-process capability used by
// the command line and by the web server when one is running alongside it.
type DBusSigner struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	appName string
}

func NewDBusSigner(appName string) (*DBusSigner, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}
	return &DBusSigner{
		conn:    conn,
		obj:     conn.Object(DBusService, dbus.ObjectPath(DBusObjectPath)),
		appName: appName,
	}, nil
}

func (s *DBusSigner) IsReady() (bool, error) {
	var ready bool
	err := s.obj.Call(DBusInterface+".IsReady", 0).Store(&ready)
	return ready, err
}

func (s *DBusSigner) GetPublicKey(ctx context.Context) (string, error) {
	var reply string
	if err := s.obj.CallWithContext(ctx, DBusInterface+".GetPublicKey", 0).Store(&reply); err != nil {
		return "", fmt.Errorf("dbus call failed: %w", err)
	}
	return parsePublicKeyResponse(reply)
}

// SignEvent replaces evt with the signed event returned by the desktop signer.
func (s *DBusSigner) SignEvent(ctx context.Context, evt *nostr.Event) error {
	eventJSON, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	var reply string
	err = s.obj.CallWithContext(ctx, DBusInterface+".SignEvent", 0, string(eventJSON), s.appName).Store(&reply)
	if err != nil {
		return fmt.Errorf("dbus call failed: %w", err)
	}
	signed, err := parseSignResponse(reply)
	if err != nil {
		return err
	}
	*evt = *signed
	return nil
}

func (s *DBusSigner) Close() error {
	return s.conn.Close()
}

type dbusResponse struct {
	Success bool            `json:"success"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result"` // double-encoded
	Error   *string         `json:"error"`
}

// unwrap returns the inner JSON document of a successful response.
func unwrap(reply string) (string, error) {
	var resp dbusResponse
	if err := json.Unmarshal([]byte(reply), &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if !resp.Success {
		msg := "unknown error"
		if resp.Error != nil {
			msg = *resp.Error
		}
		return "", fmt.Errorf("signer error: %s", msg)
	}
	var inner string
	if err := json.Unmarshal(resp.Result, &inner); err != nil {
		return "", fmt.Errorf("failed to decode result wrapper: %w", err)
	}
	return inner, nil
}

func parsePublicKeyResponse(reply string) (string, error) {
	inner, err := unwrap(reply)
	if err != nil {
		return "", err
	}
	var result struct {
		Npub string `json:"npub"`
		Hex  string `json:"hex"`
	}
	if err := json.Unmarshal([]byte(inner), &result); err != nil {
		return "", fmt.Errorf("failed to parse public key result: %w", err)
	}
	if result.Hex != "" {
		return result.Hex, nil
	}
	return result.Npub, nil
}

func parseSignResponse(reply string) (*nostr.Event, error) {
	inner, err := unwrap(reply)
	if err != nil {
		return nil, err
	}
	var result struct {
		EventJSON string `json:"event_json"`
	}
	if err := json.Unmarshal([]byte(inner), &result); err != nil {
		return nil, fmt.Errorf("failed to parse sign result: %w", err)
	}
	var signed nostr.Event
	if err := json.Unmarshal([]byte(result.EventJSON), &signed); err != nil {
		return nil, fmt.Errorf("failed to parse signed event: %w", err)
	}
	return &signed, nil
}

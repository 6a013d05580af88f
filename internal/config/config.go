/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package config provides a common base for anidbcore client config files.
// A collaborator embedding the core will typically extend ClientConfig to
// add its own sections, in the same way an ini-driven tool extends a global
// section with its own listeners:
//
//	type cfgType struct {
//		Global config.ClientConfig
//		Cache  CacheSection
//	}
//
//	func GetConfig(path string) (*cfgType, error) {
//		var cr cfgType
//		if err := config.LoadConfigFile(&cr, path); err != nil {
//			return nil, err
//		}
//		if err := cr.Global.Verify(); err != nil {
//			return nil, err
//		}
//		return &cr, nil
//	}
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio"
	"github.com/google/uuid"

	"github.com/anidbtools/anidbcore/internal/corelog"
)

const (
	defaultLogLevel = `ERROR`

	// DefaultRemoteHost and DefaultRemotePort are the well-known address of
	// the metadata service UDP endpoint.
	DefaultRemoteHost        = `api.anidb.net`
	DefaultRemotePort uint16 = 9000

	DefaultMaxConcurrentFiles = 4
	DefaultChunkSize          = 65536
	DefaultMaxMemoryUsage     = 256 * 1024 * 1024

	DefaultClientName    = `anidbcore`
	DefaultClientVersion = 1

	CACHE_MODE_DEFAULT = "always"
)

var (
	ErrNoRemoteHost             = errors.New("no remote host specified")
	ErrInvalidConnectionTimeout = errors.New("invalid connection timeout")
	ErrInvalidLogLevel          = errors.New("invalid log level")
	ErrInvalidChunkSize         = errors.New("chunk size must be positive")
	ErrInvalidConcurrency       = errors.New("max concurrent files must be positive")
	ErrInvalidMemoryBudget      = errors.New("max memory usage must be positive")
	ErrIncompleteCredentials    = errors.New("username supplied without a password, or vice versa")
	ErrGlobalSectionNotFound    = errors.New("global config section not found")
	ErrInvalidLineLocation      = errors.New("invalid line location")
	ErrInvalidUpdateLineParameter = errors.New("update line location does not contain the specified parameter")
)

const (
	envUsername  string = `ANIDB_USERNAME`
	envPassword  string = `ANIDB_PASSWORD`
	envLogLevel  string = `ANIDB_LOG_LEVEL`
	envRemote    string = `ANIDB_REMOTE_TARGET`
	envCacheMode string = `ANIDB_CACHE_MODE`
	envCachePath string = `ANIDB_CACHE_PATH`

	globalHeader = `[global]`
	headerStart  = `[`
	uuidParam    = `Instance-UUID`
	commentValue = `#`
)

// Credentials carries the username/password pair used to authenticate
// against the metadata service. Password is never marshalled to JSON or
// logged; see corelog.KV usage in the protocol client.
type Credentials struct {
	Username string `json:",omitempty"`
	Password string `json:"-"`
}

// ClientConfig is the ini-loadable configuration shared by every
// collaborator embedding the core: the command-line tool, a daemon, or an
// FFI host all load the same [global] section.
type ClientConfig struct {
	Remote_Target string `json:",omitempty"` // host[:port], defaults to DefaultRemoteHost:DefaultRemotePort

	Max_Concurrent_Files int    `json:",omitempty"`
	Chunk_Size           int    `json:",omitempty"`
	Max_Memory_Usage     int64  `json:",omitempty"`
	Connection_Timeout   string `json:",omitempty"`

	Username string `json:",omitempty"`
	Password string `json:"-"` // DO NOT send this when marshalling

	Client_Name    string `json:",omitempty"`
	Client_Version int    `json:",omitempty"`

	Log_Level string `json:",omitempty"`
	Log_File  string `json:",omitempty"`

	Cache_Mode string `json:",omitempty"`
	Cache_Path string `json:",omitempty"`

	Instance_UUID string `json:",omitempty"`
}

func (cc *ClientConfig) loadDefaults() error {
	if err := LoadEnvVar(&cc.Username, envUsername, ``); err != nil {
		return err
	}
	if err := LoadEnvVar(&cc.Password, envPassword, ``); err != nil {
		return err
	}
	if err := LoadEnvVar(&cc.Log_Level, envLogLevel, defaultLogLevel); err != nil {
		return err
	}
	if err := LoadEnvVar(&cc.Remote_Target, envRemote, ``); err != nil {
		return err
	}
	if err := LoadEnvVar(&cc.Cache_Mode, envCacheMode, ``); err != nil {
		return err
	}
	if err := LoadEnvVar(&cc.Cache_Path, envCachePath, ``); err != nil {
		return err
	}
	if cc.Max_Concurrent_Files == 0 {
		cc.Max_Concurrent_Files = DefaultMaxConcurrentFiles
	}
	if cc.Chunk_Size == 0 {
		cc.Chunk_Size = DefaultChunkSize
	}
	if cc.Max_Memory_Usage == 0 {
		cc.Max_Memory_Usage = DefaultMaxMemoryUsage
	}
	if cc.Client_Name == `` {
		cc.Client_Name = DefaultClientName
	}
	if cc.Client_Version == 0 {
		cc.Client_Version = DefaultClientVersion
	}
	if cc.Remote_Target == `` {
		cc.Remote_Target = AppendDefaultPort(DefaultRemoteHost, DefaultRemotePort)
	}
	return nil
}

// Verify checks the configuration parameters of the ClientConfig, applying
// defaults and making sure values are sensible. It mutates cc in place the
// same way the embedded ini loader leaves normalized values behind.
func (cc *ClientConfig) Verify() error {
	if err := cc.loadDefaults(); err != nil {
		return err
	}

	if cc.Instance_UUID != `` {
		if _, err := uuid.Parse(cc.Instance_UUID); err != nil {
			return fmt.Errorf("malformed instance uuid %v: %w", cc.Instance_UUID, err)
		}
	}

	cc.Log_Level = strings.ToUpper(strings.TrimSpace(cc.Log_Level))
	if err := cc.checkLogLevel(); err != nil {
		return err
	}

	if to, err := cc.parseTimeout(); err != nil || to < 0 {
		if err != nil {
			return err
		}
		return ErrInvalidConnectionTimeout
	}

	if cc.Remote_Target == `` {
		return ErrNoRemoteHost
	}
	if cc.Max_Concurrent_Files <= 0 {
		return ErrInvalidConcurrency
	}
	if cc.Chunk_Size <= 0 {
		return ErrInvalidChunkSize
	}
	if cc.Max_Memory_Usage <= 0 {
		return ErrInvalidMemoryBudget
	}
	if (cc.Username == ``) != (cc.Password == ``) {
		return ErrIncompleteCredentials
	}

	if cc.Log_File != `` {
		logdir := filepath.Dir(cc.Log_File)
		fi, err := os.Stat(logdir)
		if err != nil {
			if os.IsNotExist(err) {
				if err = os.MkdirAll(logdir, 0700); err != nil {
					return err
				}
			} else {
				return err
			}
		} else if !fi.IsDir() {
			return errors.New("log location is not a directory")
		}
	}

	switch strings.ToLower(cc.Cache_Mode) {
	case "":
		cc.Cache_Mode = CACHE_MODE_DEFAULT
	case "always", "fail":
	default:
		return errors.New("cache-mode must be [always,fail]")
	}

	return nil
}

// RemoteAddr returns the host:port of the metadata service, defaulting the
// port if the configured target omitted one.
func (cc *ClientConfig) RemoteAddr() string {
	return AppendDefaultPort(cc.Remote_Target, DefaultRemotePort)
}

// Credentials returns the configured username/password pair, and ok=false
// if no credentials were configured (anonymous use is permitted for
// non-authenticated commands).
func (cc *ClientConfig) Credentials() (c Credentials, ok bool) {
	if cc.Username == `` {
		return
	}
	return Credentials{Username: cc.Username, Password: cc.Password}, true
}

// Timeout returns the configured connection timeout, or zero if unset.
func (cc *ClientConfig) Timeout() time.Duration {
	if to, _ := cc.parseTimeout(); to > 0 {
		return to
	}
	return 0
}

// LogLevel returns the normalized log level string.
func (cc *ClientConfig) LogLevel() string {
	return cc.Log_Level
}

func (cc *ClientConfig) checkLogLevel() error {
	if len(cc.Log_Level) == 0 {
		cc.Log_Level = defaultLogLevel
		return nil
	}
	switch cc.Log_Level {
	case `OFF`, `DEBUG`, `INFO`, `WARN`, `ERROR`, `CRITICAL`:
		return nil
	}
	return ErrInvalidLogLevel
}

func (cc *ClientConfig) parseTimeout() (time.Duration, error) {
	tos := strings.TrimSpace(cc.Connection_Timeout)
	if len(tos) == 0 {
		return 0, nil
	}
	return time.ParseDuration(tos)
}

// zeroUUID reports whether id is the all-zero UUID.
func zeroUUID(id uuid.UUID) bool {
	for _, v := range id {
		if v != 0 {
			return false
		}
	}
	return true
}

// InstanceUUID returns the UUID identifying this client instance, set with
// the Instance-UUID parameter. ok is false if unset, malformed, or the
// all-zero UUID.
func (cc *ClientConfig) InstanceUUID() (id uuid.UUID, ok bool) {
	if cc.Instance_UUID == `` {
		return
	}
	var err error
	if id, err = uuid.Parse(cc.Instance_UUID); err == nil {
		ok = true
	}
	if zeroUUID(id) {
		ok = false
	}
	return
}

// SetInstanceUUID assigns id to the Instance-UUID parameter and, if loc is
// non-empty, rewrites the backing config file in place so future loads see
// the same identity.
func (cc *ClientConfig) SetInstanceUUID(id uuid.UUID, loc string) error {
	cc.Instance_UUID = id.String()
	if loc == `` {
		return nil
	}
	content, err := reloadContent(loc)
	if err != nil {
		return err
	}
	lines := strings.Split(content, "\n")
	start, stop, ok := globalLineBoundary(lines)
	if !ok {
		return ErrGlobalSectionNotFound
	}
	loc2 := argInGlobalLines(lines[start:stop], uuidParam)
	var nl []string
	if loc2 >= 0 {
		if nl, err = updateLine(lines, uuidParam, id.String(), start+loc2); err != nil {
			return err
		}
	} else if nl, err = insertLine(lines, fmt.Sprintf("%s=%s", uuidParam, id.String()), start+1); err != nil {
		return err
	}
	return updateConfigFile(loc, strings.Join(nl, "\n"))
}

func reloadContent(loc string) (content string, err error) {
	if loc == `` {
		err = errors.New("not loaded from file")
		return
	}
	var bts []byte
	bts, err = os.ReadFile(loc)
	content = string(bts)
	return
}

// GetLogger builds a *corelog.Logger from the configured Log_File/Log_Level,
// falling back to a discard logger when no log file was configured.
func (cc *ClientConfig) GetLogger() (l *corelog.Logger, err error) {
	var ll corelog.Level
	if ll, err = corelog.LevelFromString(cc.Log_Level); err != nil {
		return
	}
	if cc.Log_File == `` {
		l = corelog.NewDiscardLogger()
	} else {
		l, err = corelog.NewFile(cc.Log_File)
	}
	if err == nil {
		err = l.SetLevel(ll)
	}
	return
}

func updateConfigFile(loc string, content string) error {
	if loc == `` {
		return errors.New("configuration was loaded from bytes, cannot update")
	}
	fout, err := renameio.TempFile(filepath.Dir(loc), loc)
	if err != nil {
		return err
	}
	if err := writeFull(fout, []byte(content)); err != nil {
		return err
	}
	return fout.CloseAtomicallyReplace()
}

func writeFull(w io.Writer, b []byte) error {
	var written int
	for written < len(b) {
		n, err := w.Write(b[written:])
		if err != nil {
			return err
		} else if n == 0 {
			return errors.New("empty write")
		}
		written += n
	}
	return nil
}

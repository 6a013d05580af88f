/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnvLoadString(t *testing.T) {
	envId := `ANIDB_TEST_STRING`
	tval := `testing123`
	def := `default stuff`
	var v string

	if err := LoadEnvVar(&v, envId, def); err != nil {
		t.Fatal(err)
	} else if v != def {
		t.Fatalf("did not load default value: %s != %s", v, def)
	}

	if err := LoadEnvVar(&v, envId, `ignore me`); err != nil {
		t.Fatal(err)
	} else if v != def {
		t.Fatalf("did not leave existing value: %s %s", v, def)
	}

	if err := os.Setenv(envId, tval); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv(envId) })

	if err := LoadEnvVar(&v, envId, `ignore me`); err != nil {
		t.Fatal(err)
	} else if v != def {
		t.Fatalf("did not leave existing value: %s %s", v, def)
	}
	v = ``
	if err := LoadEnvVar(&v, envId, `ignore me`); err != nil {
		t.Fatal(err)
	} else if v != tval {
		t.Fatalf("did not pull value from environment: %s != %s", v, tval)
	}
}

func TestEnvLoadInt64(t *testing.T) {
	envId := `ANIDB_TEST_INT64`
	tval := `123`
	def := int64(99)
	var v int64

	if err := LoadEnvVar(&v, envId, def); err != nil {
		t.Fatal(err)
	} else if v != def {
		t.Fatalf("did not load default value: %v != %v", v, def)
	}

	if err := os.Setenv(envId, tval); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv(envId) })

	v = 0
	if err := LoadEnvVar(&v, envId, int64(-100)); err != nil {
		t.Fatal(err)
	} else if v != 123 {
		t.Fatalf("did not pull value from environment: %v != %v", v, tval)
	}
}

func TestEnvLoadUint64(t *testing.T) {
	envId := `ANIDB_TEST_UINT64`
	tval := `0x12345`
	def := uint64(9876)
	var v uint64

	if err := LoadEnvVar(&v, envId, def); err != nil {
		t.Fatal(err)
	} else if v != def {
		t.Fatalf("did not load default value: %v != %v", v, def)
	}

	if err := os.Setenv(envId, tval); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv(envId) })

	v = 0
	if err := LoadEnvVar(&v, envId, uint64(0xffffff)); err != nil {
		t.Fatal(err)
	} else if v != 0x12345 {
		t.Fatalf("did not pull value from environment: %v != %v", v, tval)
	}
}

func TestEnvLoadBool(t *testing.T) {
	envId := `ANIDB_TEST_BOOL`
	tval := `TRUE`
	def := false
	var v bool

	if err := LoadEnvVar(&v, envId, def); err != nil {
		t.Fatal(err)
	} else if v != def {
		t.Fatalf("did not load default value: %v != %v", v, def)
	}

	if err := os.Setenv(envId, tval); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv(envId) })

	v = false
	if err := LoadEnvVar(&v, envId, false); err != nil {
		t.Fatal(err)
	} else if !v {
		t.Fatalf("did not pull value from environment: %v != true", v)
	}
}

func TestEnvFileLoadString(t *testing.T) {
	envId := `ANIDB_TEST_STRING_FILE_BACKED`
	envFileId := envId + `_FILE`
	tfile := filepath.Join(tempDir, envId+`_FILE`)
	tval := `testing123`
	def := `default values`
	var v string
	if err := os.WriteFile(tfile, []byte(tval), 0660); err != nil {
		t.Fatal(err)
	}

	if err := LoadEnvVar(&v, envId, def); err != nil {
		t.Fatal(err)
	} else if v != def {
		t.Fatalf("did not load default value: %s != %s", v, def)
	}

	if err := os.Setenv(envFileId, tfile); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv(envFileId) })

	v = ``
	if err := LoadEnvVar(&v, envId, `ignore me`); err != nil {
		t.Fatal(err)
	} else if v != tval {
		t.Fatalf("did not pull value from environment file: %s != %s", v, tval)
	}
}

func TestEnvFileLoadEmptyFileIsAnError(t *testing.T) {
	envId := `ANIDB_TEST_EMPTY_FILE`
	envFileId := envId + `_FILE`
	tfile := filepath.Join(tempDir, envId+`_FILE`)
	if err := os.WriteFile(tfile, nil, 0660); err != nil {
		t.Fatal(err)
	}
	if err := os.Setenv(envFileId, tfile); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv(envFileId) })

	var v string
	if err := LoadEnvVar(&v, envId, `default`); err != ErrEmptyEnvFile {
		t.Fatalf("expected ErrEmptyEnvFile, got %v", err)
	}
}

func TestLoadEnvVarRejectsNonPointer(t *testing.T) {
	var v string
	if err := LoadEnvVar(v, `ANIDB_TEST_NONPTR`, ``); err != ErrInvalidArg {
		t.Fatalf("expected ErrInvalidArg, got %v", err)
	}
}

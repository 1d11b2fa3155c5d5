package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// sqliteConfigFile writes a config pointing at a throwaway sqlite database.
func sqliteConfigFile(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "bedel.db")
	return writeConfigFile(t, fmt.Sprintf("db:\n  driver: sqlite\n  path: %s\n", dbPath))
}

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "faqs.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	return path
}

const seedYAML = `- question: "¿Cómo renuevo un préstamo de biblioteca?"
  answer: "Ingresa al portal de biblioteca con tu usuario institucional y usa la opción Renovar."
  category: "Biblioteca"
  keywords: ["biblioteca", "préstamo", "renovar"]
- question: "¿Cuándo abren las inscripciones?"
  answer: "Las inscripciones abren la primera semana de cada semestre según el calendario académico."
  category: "Registro y Matrículas"
  keywords: ["inscripciones", "matrícula"]
`

func TestFAQSeedAndList(t *testing.T) {
	configPath := sqliteConfigFile(t)
	seedPath := writeSeedFile(t, seedYAML)

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"faq", "seed", seedPath, "--config", configPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("faq seed failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Seeded 2 of 2") {
		t.Errorf("seed output = %s", buf.String())
	}

	// Seeding again inserts nothing.
	cmd = newRootCmd()
	buf.Reset()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"faq", "seed", seedPath, "--config", configPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("second faq seed failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Seeded 0 of 2") {
		t.Errorf("second seed output = %s", buf.String())
	}

	cmd = newRootCmd()
	buf.Reset()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"faq", "list", "--config", configPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("faq list failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "¿Cómo renuevo un préstamo de biblioteca?") {
		t.Errorf("list output missing seeded question: %s", out)
	}
	if !strings.Contains(out, "2 FAQ entries") {
		t.Errorf("list output missing count: %s", out)
	}
}

func TestFAQSeedEmptyFile(t *testing.T) {
	configPath := sqliteConfigFile(t)
	seedPath := writeSeedFile(t, "[]\n")

	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"faq", "seed", seedPath, "--config", configPath})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "no FAQ entries") {
		t.Errorf("err = %v, want empty-file error", err)
	}
}

func TestFAQListEmptyDatabase(t *testing.T) {
	configPath := sqliteConfigFile(t)

	// Migrate first so the table exists.
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"db", "migrate", "--config", configPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("db migrate failed: %v", err)
	}

	cmd = newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"faq", "list", "--config", configPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("faq list failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No FAQ entries found.") {
		t.Errorf("list output = %s", buf.String())
	}
}

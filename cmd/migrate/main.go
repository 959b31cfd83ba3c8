package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"github.com/rajivgeraev/swaply-api/internal/config"
)

// Простейший прогон миграций: выполняет по порядку все *.sql из
// каталога migrations, запоминая применённые в таблице schema_migrations.
func main() {
	cfg := config.LoadConfig()

	dir := "migrations"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	dsn := cfg.DatabaseURL
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("❌ Ошибка подключения к базе данных: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("❌ База данных недоступна: %v", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		log.Fatalf("❌ Ошибка создания таблицы миграций: %v", err)
	}

	names, err := migrationFiles(dir)
	if err != nil {
		log.Fatalf("❌ Ошибка чтения каталога миграций: %v", err)
	}

	applied := 0
	for _, name := range names {
		var exists bool
		if err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE name = $1)`, name).Scan(&exists); err != nil {
			log.Fatalf("❌ Ошибка проверки миграции %s: %v", name, err)
		}
		if exists {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Fatalf("❌ Ошибка чтения миграции %s: %v", name, err)
		}

		tx, err := db.Begin()
		if err != nil {
			log.Fatalf("❌ Ошибка начала транзакции: %v", err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			log.Fatalf("❌ Ошибка применения миграции %s: %v", name, err)
		}

		if _, err := tx.Exec(`INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			tx.Rollback()
			log.Fatalf("❌ Ошибка записи миграции %s: %v", name, err)
		}

		if err := tx.Commit(); err != nil {
			log.Fatalf("❌ Ошибка фиксации миграции %s: %v", name, err)
		}

		log.Printf("✅ Применена миграция %s", name)
		applied++
	}

	fmt.Printf("Готово: применено миграций — %d\n", applied)
}

// migrationFiles возвращает отсортированный список *.sql файлов
func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

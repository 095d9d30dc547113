// Package main is a diagnostic tool for testing database connectivity and
// inspecting live supervision data. It connects to the database, queries the
// institutions and users tables, and prints a summary to stdout. The binary
// exits with a non-zero code on any failure so it can be embedded in health
// checks or CI/CD pipeline steps to gate deployments on a reachable,
// populated database.
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

func main() {
	dbPassword := os.Getenv("DATABASE_PASSWORD")
	if dbPassword == "" {
		dbPassword = "supervision"
	}

	connStr := fmt.Sprintf("host=localhost port=5432 user=supervision password=%s dbname=supervision_portal sslmode=disable", dbPassword)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	// Check institutions
	fmt.Println("=== INSTITUTIONS ===")
	rows, err := db.Query("SELECT id, name, license_number, status, risk_level FROM institutions ORDER BY registered_at")
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name, license, status, riskLevel string
		if err := rows.Scan(&id, &name, &license, &status, &riskLevel); err != nil {
			log.Printf("Warning: failed to scan institution row: %v", err)
			continue
		}
		fmt.Printf("Institution: %s [%s] status=%s risk=%s (ID: %s)\n", name, license, status, riskLevel, id)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Iteration failed: %v", err)
	}

	// Check user accounts
	fmt.Println("\n=== USERS ===")
	rows2, err := db.Query("SELECT username, role, is_active FROM users ORDER BY username")
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows2.Close()

	for rows2.Next() {
		var username, role string
		var active bool
		if err := rows2.Scan(&username, &role, &active); err != nil {
			log.Printf("Warning: failed to scan user row: %v", err)
			continue
		}
		fmt.Printf("User: %s role=%s active=%v\n", username, role, active)
	}
	if err := rows2.Err(); err != nil {
		log.Fatalf("Iteration failed: %v", err)
	}

	// Check audit chain head
	fmt.Println("\n=== AUDIT TRAIL ===")
	var count int
	var lastHash sql.NullString
	if err := db.QueryRow("SELECT COUNT(*), MAX(entry_hash) FILTER (WHERE seq = (SELECT MAX(seq) FROM audit_logs)) FROM audit_logs").Scan(&count, &lastHash); err != nil {
		log.Fatalf("Audit query failed: %v", err)
	}
	fmt.Printf("Entries: %d, chain head: %s\n", count, lastHash.String)
}

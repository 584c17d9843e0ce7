// Package csv reads the dashboard tables from CSV files or URLs.
//
// The series table is the wide `date,state,fips,cases,deaths` layout
// published by most COVID-19 trackers; it is turned into long-format rows.
// The population table is `state,population`.
package csv

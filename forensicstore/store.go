// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

// Package forensicstore can create, access and process forensic evidence
// records bundled in so called forensicstores (an SQLite database holding
// STIX 2.1 elements and an embedded sqlar filesystem).
package forensicstore

import (
	"crypto/md5"  // #nosec
	"crypto/sha1" // #nosec
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/fatih/structs"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/forensicanalysis/forensicworkflow/sqlitefs"
)

const forensicstoreVersion = 2
const elementaryApplicationID = 1701602669
const discriminator = "type"

// InsertTimeLayout is the layout of the insert_time column.
const InsertTimeLayout = "2006-01-02T15:04:05.000Z"

var (
	// ErrStoreExists is returned by New if the database file exists.
	ErrStoreExists = errors.New("store already exists")
	// ErrStoreNotExists is returned by Open if the database file is missing.
	ErrStoreNotExists = errors.New("store does not exist")
	// ErrElementNotExists is returned by Get for unknown ids.
	ErrElementNotExists = errors.New("element does not exist")
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+(\.[A-Za-z0-9_\-]+)*$`)

// The ForensicStore is the case database of an investigation. Every working
// copy of an acquisition is stored as an element, the copied bytes can be
// packed into the embedded sqlar filesystem. A ForensicStore must not be
// used by multiple goroutines at once.
type ForensicStore struct {
	url       string
	fs        afero.Fs
	cursor    *sqlite.Conn
	types     *typeMap
	validator Validator
}

// New creates a new forensicstore at url. The special url ":memory:"
// creates a temporary in-memory store.
func New(url string) (*ForensicStore, error) {
	return open(url, true)
}

// Open opens an existing forensicstore.
func Open(url string) (*ForensicStore, error) {
	return open(url, false)
}

// OpenOrCreate opens the forensicstore at url and creates it if it does not
// exist.
func OpenOrCreate(url string) (*ForensicStore, error) {
	store, err := Open(url)
	if errors.Is(err, ErrStoreNotExists) {
		return New(url)
	}
	return store, err
}

func open(url string, create bool) (*ForensicStore, error) { // nolint:gocyclo
	if url != ":memory:" {
		url = strings.TrimRight(url, "/")

		exists := true
		if _, err := os.Stat(url); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			exists = false
		}

		if create && exists {
			return nil, errors.Wrap(ErrStoreExists, url)
		}
		if !create && !exists {
			return nil, errors.Wrap(ErrStoreNotExists, url)
		}

		if create {
			if err := os.MkdirAll(filepath.Dir(url), 0750); err != nil {
				return nil, err
			}
			zap.L().Info("creating store", zap.String("url", url))
		}
	}

	cursor, err := sqlite.OpenConn(url, 0)
	if err != nil {
		return nil, errors.Wrap(err, "could not open database")
	}

	store := &ForensicStore{url: url, cursor: cursor, types: newTypeMap()}
	if err := store.setup(create); err != nil {
		cursor.Close() // nolint:errcheck
		return nil, err
	}
	return store, nil
}

func (store *ForensicStore) setup(create bool) error {
	if create {
		if err := store.exec(fmt.Sprintf("PRAGMA application_id = %d", elementaryApplicationID)); err != nil {
			return err
		}
		if err := store.exec(fmt.Sprintf("PRAGMA user_version = %d", forensicstoreVersion)); err != nil {
			return err
		}
		err := store.exec("CREATE VIRTUAL TABLE `elements` " +
			"USING fts5(id UNINDEXED, json, insert_time UNINDEXED, tokenize=\"unicode61 tokenchars '/.'\")")
		if err != nil {
			return errors.Wrap(err, "could not create elements table")
		}
	} else {
		applicationID, err := store.pragma("application_id")
		if err != nil {
			return err
		}
		if applicationID != elementaryApplicationID {
			return fmt.Errorf("wrong file format (application_id is %d, requires %d)", applicationID, elementaryApplicationID)
		}

		version, err := store.pragma("user_version")
		if err != nil {
			return err
		}
		if version != forensicstoreVersion {
			return fmt.Errorf("wrong file format (user_version is %d, requires %d)", version, forensicstoreVersion)
		}
	}

	fs, err := sqlitefs.NewCursor(store.cursor)
	if err != nil {
		return err
	}
	store.fs = fs

	if err := store.setupTypes(); err != nil {
		return err
	}

	store.validator, err = NewSchemaValidator()
	return err
}

// URL returns the location of the database.
func (store *ForensicStore) URL() string {
	return store.url
}

// Fs returns the embedded sqlar filesystem.
func (store *ForensicStore) Fs() afero.Fs {
	return store.fs
}

// SetValidator replaces the element validator used by Insert and Validate.
func (store *ForensicStore) SetValidator(validator Validator) {
	store.validator = validator
}

/* ################################
#   API
################################ */

// Insert adds a single element. Elements without id get a new
// "<type>--<uuid>" id.
func (store *ForensicStore) Insert(element JSONElement) (string, error) {
	nestedElement := map[string]interface{}{}
	if err := json.Unmarshal(element, &nestedElement); err != nil {
		return "", errors.Wrap(err, "element is not a json object")
	}

	elementType, ok := nestedElement[discriminator].(string)
	if !ok || elementType == "" {
		return "", errors.New("element requires type")
	}
	if _, ok := nestedElement[elementType]; ok {
		return "", fmt.Errorf("element must not contain a field '%s'", elementType)
	}

	id, ok := nestedElement["id"].(string)
	if !ok {
		id = elementType + "--" + uuid.New().String()
		nestedElement["id"] = id

		var err error
		element, err = json.Marshal(nestedElement)
		if err != nil {
			return "", err
		}
	}

	flaws, err := store.validator.Validate(element)
	if err != nil {
		return "", errors.Wrap(err, "validation failed")
	}
	if len(flaws) > 0 {
		return "", fmt.Errorf("element could not be validated [%s]", strings.Join(flaws, ","))
	}

	store.types.addAll(elementType, flatten(nestedElement))

	err = sqlitex.Exec(store.cursor,
		"INSERT INTO `elements` (id, json, insert_time) VALUES (?, ?, ?)", nil,
		id, string(element), time.Now().UTC().Format(InsertTimeLayout))
	if err != nil {
		return "", errors.Wrap(err, "could not insert element")
	}
	return id, nil
}

// InsertBatch adds a set of elements in a single transaction. Either all
// or none of the elements are stored.
func (store *ForensicStore) InsertBatch(elements []JSONElement) (ids []string, err error) {
	if len(elements) == 0 {
		return nil, nil
	}
	defer sqlitex.Save(store.cursor)(&err)

	for _, element := range elements {
		id, err := store.Insert(element)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// InsertStruct converts a Go struct to a map and inserts it.
func (store *ForensicStore) InsertStruct(element interface{}) (string, error) {
	ids, err := store.InsertStructBatch([]interface{}{element})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// InsertStructBatch converts a list of structs and inserts them in a single
// transaction. Field names are converted to snake case, empty fields are
// omitted.
func (store *ForensicStore) InsertStructBatch(elements []interface{}) ([]string, error) {
	var ms []JSONElement
	for _, element := range elements {
		m := structs.Map(element)
		m = lower(m).(map[string]interface{})
		b, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		ms = append(ms, b)
	}
	return store.InsertBatch(ms)
}

// Get retrieves a single element.
func (store *ForensicStore) Get(id string) (JSONElement, error) {
	var element JSONElement
	err := sqlitex.Exec(store.cursor, "SELECT json FROM `elements` WHERE id = ?", func(stmt *sqlite.Stmt) error {
		element = JSONElement(stmt.ColumnText(0))
		return nil
	}, id)
	if err != nil {
		return nil, err
	}
	if element == nil {
		return nil, errors.Wrap(ErrElementNotExists, id)
	}
	return element, nil
}

// Select retrieves all elements of a type. Each condition maps fields to
// LIKE patterns; conditions are combined with OR, the fields of a single
// condition with AND.
func (store *ForensicStore) Select(elementType string, conditions []map[string]string) ([]JSONElement, error) {
	query := "SELECT json FROM `elements` WHERE json_extract(json, '$." + discriminator + "') = ?"
	args := []interface{}{elementType}

	var ors []string
	for _, condition := range conditions {
		keys := make([]string, 0, len(condition))
		for key := range condition {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var ands []string
		for _, key := range keys {
			jsonPath, err := jsonPath(key)
			if err != nil {
				return nil, err
			}
			ands = append(ands, "json_extract(json, ?) LIKE ?")
			args = append(args, jsonPath, condition[key])
		}
		if len(ands) > 0 {
			ors = append(ors, "("+strings.Join(ands, " AND ")+")")
		}
	}
	if len(ors) > 0 {
		query += " AND (" + strings.Join(ors, " OR ") + ")"
	}
	query += " ORDER BY rowid"

	return store.elements(query, args...)
}

// Search runs a full text search over all elements.
func (store *ForensicStore) Search(q string) ([]JSONElement, error) {
	return store.elements("SELECT json FROM `elements` WHERE `elements` = ? ORDER BY rank", q)
}

// All returns every element in insert order.
func (store *ForensicStore) All() ([]JSONElement, error) {
	return store.elements("SELECT json FROM `elements` ORDER BY rowid")
}

// Query executes an sql query. The first column of every row is returned.
func (store *ForensicStore) Query(query string) ([]JSONElement, error) {
	elements := []JSONElement{}
	err := sqlitex.ExecTransient(store.cursor, query, func(stmt *sqlite.Stmt) error {
		elements = append(elements, JSONElement(stmt.ColumnText(0)))
		return nil
	})
	return elements, err
}

// StoreFile creates a file in the embedded filesystem. If filePath is
// taken, a suffix "_<n>" is added before the extension. The actual path is
// returned.
func (store *ForensicStore) StoreFile(filePath string) (storePath string, file io.WriteCloser, err error) {
	filePath = path.Clean(filepath.ToSlash(filePath))
	if err := store.fs.MkdirAll(path.Dir(filePath), 0755); err != nil {
		return "", nil, err
	}

	ext := path.Ext(filePath)
	base := filePath[:len(filePath)-len(ext)]
	storePath = filePath

	for i := 0; ; i++ {
		exists, err := afero.Exists(store.fs, storePath)
		if err != nil {
			return "", nil, err
		}
		if !exists {
			break
		}
		storePath = fmt.Sprintf("%s_%d%s", base, i, ext)
	}

	file, err = store.fs.Create(storePath)
	return storePath, file, err
}

// LoadFile opens a file from the embedded filesystem.
func (store *ForensicStore) LoadFile(filePath string) (io.ReadCloser, error) {
	return store.fs.Open(filePath)
}

// Close creates a view per element type and closes the database.
func (store *ForensicStore) Close() error {
	if store.types.changed {
		if err := store.createViews(); err != nil {
			zap.L().Warn("could not create views", zap.Error(err))
		}
	}
	return store.cursor.Close()
}

func (store *ForensicStore) createViews() error {
	for typeName, fields := range store.types.all() {
		err := store.exec(fmt.Sprintf("DROP VIEW IF EXISTS %s", quoteIdentifier(typeName)))
		if err != nil {
			return err
		}

		var columns []string
		for field := range fields {
			jsonPath, err := jsonPath(field)
			if err != nil {
				continue
			}
			columns = append(columns, fmt.Sprintf("json_extract(json, %s) AS %s",
				quoteLiteral(jsonPath), quoteIdentifier(field)))
		}
		sort.Strings(columns)
		if len(columns) == 0 {
			continue
		}

		err = store.exec(fmt.Sprintf("CREATE VIEW %s AS SELECT %s FROM `elements` WHERE json_extract(json, '$.%s') = %s",
			quoteIdentifier(typeName), strings.Join(columns, ", "), discriminator, quoteLiteral(typeName)))
		if err != nil {
			return err
		}
	}
	return nil
}

/* ################################
#   Validate
################################ */

// Validate checks the database for flaws: schema violations, export paths
// outside the store, files whose size or hashes do not match their element
// and files without or missing from elements.
func (store *ForensicStore) Validate() (flaws []string, err error) {
	flaws = []string{}
	expectedFiles := map[string]bool{}

	elements, err := store.All()
	if err != nil {
		return nil, err
	}
	for _, element := range elements {
		elementFlaws, elementExpectedFiles, err := store.validateElement(element)
		if err != nil {
			return nil, err
		}
		flaws = append(flaws, elementFlaws...)
		for _, elementExpectedFile := range elementExpectedFiles {
			expectedFiles[elementExpectedFile] = true
		}
	}

	foundFiles := map[string]bool{}
	var additionalFiles []string
	err = afero.Walk(store.fs, "/", func(walkPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		walkPath = filepath.ToSlash(walkPath)
		foundFiles[walkPath] = true
		if !expectedFiles[walkPath] {
			additionalFiles = append(additionalFiles, walkPath)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(additionalFiles) > 0 {
		sort.Strings(additionalFiles)
		flaws = append(flaws, fmt.Sprintf("additional files: ('%s')", strings.Join(additionalFiles, "', '")))
	}

	var missingFiles []string
	for expectedFile := range expectedFiles {
		if !foundFiles[expectedFile] {
			missingFiles = append(missingFiles, expectedFile)
		}
	}
	if len(missingFiles) > 0 {
		sort.Strings(missingFiles)
		flaws = append(flaws, fmt.Sprintf("missing files: ('%s')", strings.Join(missingFiles, "', '")))
	}
	return flaws, nil
}

func (store *ForensicStore) validateElement(element JSONElement) (flaws []string, expectedFiles []string, err error) { // nolint:gocyclo
	flaws, err = store.validator.Validate(element)
	if err != nil {
		return nil, nil, err
	}

	id := gjson.GetBytes(element, "id").String()
	size := gjson.GetBytes(element, "size")
	hashes := gjson.GetBytes(element, "hashes")

	var paths []string
	gjson.ParseBytes(element).ForEach(func(key, value gjson.Result) bool {
		if strings.HasSuffix(key.String(), "_path") {
			paths = append(paths, value.String())
		}
		return true
	})
	sort.Strings(paths)

	for _, exportPath := range paths {
		if strings.Contains(exportPath, "..") {
			flaws = append(flaws, fmt.Sprintf("'..' in %s", exportPath))
			continue
		}

		storePath := path.Join("/", exportPath)
		expectedFiles = append(expectedFiles, storePath)

		exists, err := afero.Exists(store.fs, storePath)
		if err != nil {
			return nil, nil, err
		}
		if !exists {
			continue
		}

		if size.Exists() {
			fi, err := store.fs.Stat(storePath)
			if err != nil {
				return nil, nil, err
			}
			if size.Int() != fi.Size() {
				flaws = append(flaws, fmt.Sprintf("wrong size for %s (is %d, expected %d)", exportPath, fi.Size(), size.Int()))
			}
		}

		expected := map[string]string{}
		var algorithms []string
		hashes.ForEach(func(key, value gjson.Result) bool {
			algorithms = append(algorithms, key.String())
			expected[key.String()] = strings.ToLower(value.String())
			return true
		})
		sort.Strings(algorithms)

		for _, algorithm := range algorithms {
			h := newHash(algorithm)
			if h == nil {
				flaws = append(flaws, fmt.Sprintf("unsupported hash %s for %s", algorithm, exportPath))
				continue
			}

			f, err := store.fs.Open(storePath)
			if err != nil {
				return nil, nil, err
			}
			_, err = io.Copy(h, f)
			f.Close() // nolint:errcheck
			if err != nil {
				return nil, nil, errors.Wrapf(err, "could not read %s", exportPath)
			}

			if fmt.Sprintf("%x", h.Sum(nil)) != expected[algorithm] {
				zap.L().Debug("hash mismatch", zap.String("element", id), zap.String("algorithm", algorithm))
				flaws = append(flaws, fmt.Sprintf("hashvalue mismatch %s for %s", algorithm, exportPath))
			}
		}
	}

	return flaws, expectedFiles, nil
}

func newHash(algorithm string) hash.Hash {
	switch algorithm {
	case "MD5":
		return md5.New() // #nosec
	case "SHA1", "SHA-1":
		return sha1.New() // #nosec
	case "SHA256", "SHA-256":
		return sha256.New()
	}
	return nil
}

/* ################################
#   Intern
################################ */

func (store *ForensicStore) elements(query string, args ...interface{}) ([]JSONElement, error) {
	elements := []JSONElement{}
	err := sqlitex.Exec(store.cursor, query, func(stmt *sqlite.Stmt) error {
		elements = append(elements, JSONElement(stmt.ColumnText(0)))
		return nil
	}, args...)
	if err != nil {
		return nil, err
	}
	return elements, nil
}

func (store *ForensicStore) exec(query string) error {
	return sqlitex.ExecTransient(store.cursor, query, nil)
}

func (store *ForensicStore) pragma(name string) (int64, error) {
	var value int64
	err := sqlitex.ExecTransient(store.cursor, "PRAGMA "+name, func(stmt *sqlite.Stmt) error {
		value = stmt.ColumnInt64(0)
		return nil
	})
	return value, err
}

func isElementTable(name string) bool {
	if strings.HasPrefix(name, "sqlite") || strings.HasPrefix(name, "_") {
		return false
	}
	if name == "sqlar" || name == "elements" {
		return false
	}
	for _, suffix := range []string{"_data", "_idx", "_content", "_docsize", "_config"} {
		if strings.HasSuffix(name, suffix) {
			return false
		}
	}
	return true
}

// setupTypes loads the columns of the views created by earlier sessions.
func (store *ForensicStore) setupTypes() error {
	var views []string
	err := sqlitex.Exec(store.cursor, "SELECT name FROM sqlite_master WHERE type = 'view'", func(stmt *sqlite.Stmt) error {
		if name := stmt.ColumnText(0); isElementTable(name) {
			views = append(views, name)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, name := range views {
		err := sqlitex.ExecTransient(store.cursor, fmt.Sprintf("PRAGMA table_info (%s)", quoteIdentifier(name)),
			func(stmt *sqlite.Stmt) error {
				store.types.add(name, stmt.GetText("name"))
				return nil
			})
		if err != nil {
			return err
		}
	}
	store.types.changed = false
	return nil
}

// jsonPath converts a dotted field name into an SQLite json path, numeric
// parts become array indices.
func jsonPath(field string) (string, error) {
	if !fieldPattern.MatchString(field) {
		return "", fmt.Errorf("invalid field name %q", field)
	}
	var b strings.Builder
	b.WriteString("$")
	for _, part := range strings.Split(field, ".") {
		if _, err := strconv.Atoi(part); err == nil {
			b.WriteString("[" + part + "]")
			continue
		}
		b.WriteString(`."` + part + `"`)
	}
	return b.String(), nil
}

func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

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

// Package forensicworkflow acquires evidence files into a working directory
// and documents them so the acquisition can be reproduced and checked later.
//
// The workflow
//
// A run consists of three sequential stages that exchange data only through
// the working directory:
//     - Acquire copies every regular file of the source directory into the
//       working directory, preserving modification and access times, and
//       appends a record per file to the audit log acq_log.txt.
//     - Hash computes the SHA-256 digest of every regular file in the working
//       directory and writes the manifest hashes.txt.
//     - Extract runs an external metadata tool (exiftool by default) on every
//       regular file and writes the report metadata.txt together with the
//       file size, creation and modification time.
//
// Optionally the files are recorded as STIX 2.1 file elements in a
// forensicstore case database. The manifest can be verified at any later time.
//
// Structure
//
// An example working directory after a run:
//     working/
//     ├── acq_log.txt
//     ├── hashes.txt
//     ├── metadata.txt
//     ├── IMG_0001.jpg
//     └── report.docx
//
// Copies overwrite files of the same name in the working directory, so a
// second acquisition refreshes the working copies. The audit log is never
// truncated.
package forensicworkflow

package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// sessionTimeLayout mirrors the FIX UTCTimestamp convention used by the
// original session file: YYYYMMDD-HH:MM:SS.sss.
const sessionTimeLayout = "20060102-15:04:05.000"

type offsetSize struct {
	offset int64
	size   int
}

// FileStore is a durable MessageStore backed by four co-located files:
// "<sender>-<target>.body", ".header", ".seqnums" and ".session".
type FileStore struct {
	msgFileName     string
	headerFileName  string
	seqNumsFileName string
	sessionFileName string

	msgFile     *os.File
	headerFile  *os.File
	seqNumsFile *os.File
	sessionFile *os.File

	offsets map[int]offsetSize

	nextSender   int
	nextTarget   int
	creationTime time.Time
}

// NewFileStore opens (creating if necessary) the four-file set for a
// session identified by senderCompID/targetCompID under dir, expanding
// any strftime-style tokens (%Y, %m, %d) in dir first.
func NewFileStore(dir, senderCompID, targetCompID string) (*FileStore, error) {
	fs := &FileStore{offsets: make(map[int]offsetSize)}

	expanded := expandPathTemplate(dir)
	if expanded == dir {
		expanded = expandPathTemplate(filepath.Join(dir, "%Y%m%d"))
	}
	if expanded == "" {
		expanded = "."
	}
	if err := os.MkdirAll(expanded, 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir %s: %w", expanded, err)
	}

	prefix := filepath.Join(expanded, senderCompID+"-"+targetCompID+".")
	fs.msgFileName = prefix + "body"
	fs.headerFileName = prefix + "header"
	fs.seqNumsFileName = prefix + "seqnums"
	fs.sessionFileName = prefix + "session"

	if err := fs.open(false); err != nil {
		return nil, err
	}
	return fs, nil
}

func openReadWrite(name string) (*os.File, error) {
	f, err := os.OpenFile(name, os.O_RDWR, 0o644)
	if err == nil {
		return f, nil
	}
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0o644)
}

func (fs *FileStore) closeAll() {
	for _, f := range []*os.File{fs.msgFile, fs.headerFile, fs.seqNumsFile, fs.sessionFile} {
		if f != nil {
			f.Close()
		}
	}
}

func (fs *FileStore) open(deleteFile bool) error {
	fs.closeAll()
	fs.msgFile, fs.headerFile, fs.seqNumsFile, fs.sessionFile = nil, nil, nil, nil

	if deleteFile {
		os.Remove(fs.msgFileName)
		os.Remove(fs.headerFileName)
		os.Remove(fs.seqNumsFileName)
		os.Remove(fs.sessionFileName)
	}

	fs.nextSender, fs.nextTarget = 1, 1
	if err := fs.populateCache(); err != nil {
		return err
	}

	var err error
	if fs.msgFile, err = openReadWrite(fs.msgFileName); err != nil {
		return fmt.Errorf("store: open body file %s: %w", fs.msgFileName, err)
	}
	if fs.headerFile, err = openReadWrite(fs.headerFileName); err != nil {
		return fmt.Errorf("store: open header file %s: %w", fs.headerFileName, err)
	}
	if fs.seqNumsFile, err = openReadWrite(fs.seqNumsFileName); err != nil {
		return fmt.Errorf("store: open seqnums file %s: %w", fs.seqNumsFileName, err)
	}

	_, statErr := os.Stat(fs.sessionFileName)
	setCreationTime := os.IsNotExist(statErr)
	if fs.sessionFile, err = openReadWrite(fs.sessionFileName); err != nil {
		return fmt.Errorf("store: open session file %s: %w", fs.sessionFileName, err)
	}
	if setCreationTime {
		// Truncate to the millisecond precision the session file
		// actually stores, so a freshly created store and one
		// reopened from disk report the same creation time.
		fs.creationTime, _ = time.Parse(sessionTimeLayout, time.Now().UTC().Format(sessionTimeLayout))
		if err := fs.writeSession(); err != nil {
			return err
		}
	}

	return fs.writeSeqNums()
}

func (fs *FileStore) populateCache() error {
	fs.offsets = make(map[int]offsetSize)

	if f, err := os.Open(fs.headerFileName); err == nil {
		sc := bufio.NewScanner(f)
		sc.Split(bufio.ScanWords)
		for sc.Scan() {
			fields := strings.Split(strings.TrimSuffix(sc.Text(), ","), ",")
			if len(fields) != 3 {
				continue
			}
			num, err1 := strconv.Atoi(fields[0])
			offset, err2 := strconv.ParseInt(fields[1], 10, 64)
			size, err3 := strconv.Atoi(fields[2])
			if err1 == nil && err2 == nil && err3 == nil {
				fs.offsets[num] = offsetSize{offset: offset, size: size}
			}
		}
		f.Close()
	}

	if f, err := os.Open(fs.seqNumsFileName); err == nil {
		var line string
		if b, err := os.ReadFile(fs.seqNumsFileName); err == nil {
			line = string(b)
		}
		f.Close()
		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			if sender, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
				fs.nextSender = sender
			}
			if target, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
				fs.nextTarget = target
			}
		}
	}

	if b, err := os.ReadFile(fs.sessionFileName); err == nil {
		if t, err := time.Parse(sessionTimeLayout, strings.TrimSpace(string(b))); err == nil {
			fs.creationTime = t
		}
	}

	return nil
}

func (fs *FileStore) Set(data []byte) error {
	if err := fs.setSeq(fs.nextSender, data); err != nil {
		return err
	}
	fs.nextSender++
	return fs.writeSeqNums()
}

func (fs *FileStore) setSeq(msgSeqNum int, data []byte) error {
	offset, err := fs.msgFile.Seek(0, os.SEEK_END)
	if err != nil {
		return fmt.Errorf("store: seek %s: %w", fs.msgFileName, err)
	}
	if _, err := fs.headerFile.Seek(0, os.SEEK_END); err != nil {
		return fmt.Errorf("store: seek %s: %w", fs.headerFileName, err)
	}
	if _, err := fmt.Fprintf(fs.headerFile, "%d,%d,%d ", msgSeqNum, offset, len(data)); err != nil {
		return fmt.Errorf("store: write %s: %w", fs.headerFileName, err)
	}
	fs.offsets[msgSeqNum] = offsetSize{offset: offset, size: len(data)}
	if _, err := fs.msgFile.Write(data); err != nil {
		return fmt.Errorf("store: write %s: %w", fs.msgFileName, err)
	}
	if err := fs.msgFile.Sync(); err != nil {
		return fmt.Errorf("store: flush %s: %w", fs.msgFileName, err)
	}
	if err := fs.headerFile.Sync(); err != nil {
		return fmt.Errorf("store: flush %s: %w", fs.headerFileName, err)
	}
	return nil
}

func (fs *FileStore) Get(begin, end int) ([][]byte, error) {
	var out [][]byte
	for i := begin; i <= end; i++ {
		if msg, ok := fs.get(i); ok {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (fs *FileStore) get(msgSeqNum int) ([]byte, bool) {
	loc, ok := fs.offsets[msgSeqNum]
	if !ok {
		return nil, false
	}
	buf := make([]byte, loc.size)
	if _, err := fs.msgFile.ReadAt(buf, loc.offset); err != nil {
		return nil, false
	}
	return buf, true
}

func (fs *FileStore) NextSenderMsgSeqNum() int { return fs.nextSender }
func (fs *FileStore) NextTargetMsgSeqNum() int { return fs.nextTarget }

func (fs *FileStore) SetNextSenderMsgSeqNum(n int) error {
	fs.nextSender = n
	return fs.writeSeqNums()
}

func (fs *FileStore) SetNextTargetMsgSeqNum(n int) error {
	fs.nextTarget = n
	return fs.writeSeqNums()
}

func (fs *FileStore) IncrNextSenderMsgSeqNum() error {
	fs.nextSender++
	return fs.writeSeqNums()
}

func (fs *FileStore) IncrNextTargetMsgSeqNum() error {
	fs.nextTarget++
	return fs.writeSeqNums()
}

func (fs *FileStore) CreationTime() time.Time { return fs.creationTime }

func (fs *FileStore) Reset() error {
	fs.nextSender, fs.nextTarget = 1, 1
	if err := fs.open(true); err != nil {
		return err
	}
	fs.creationTime = time.Now().UTC()
	return fs.writeSession()
}

func (fs *FileStore) Refresh() error {
	return fs.open(false)
}

func (fs *FileStore) Stop(wait bool) error {
	fs.closeAll()
	return nil
}

// writeSeqNums rewrites the fixed-width "%10.10d : %10.10d" record in
// place, preserving the original file format exactly so external tools
// reading it continue to work unmodified.
func (fs *FileStore) writeSeqNums() error {
	if fs.seqNumsFile == nil {
		return nil
	}
	if _, err := fs.seqNumsFile.Seek(0, os.SEEK_SET); err != nil {
		return fmt.Errorf("store: seek %s: %w", fs.seqNumsFileName, err)
	}
	if _, err := fmt.Fprintf(fs.seqNumsFile, "%010d : %010d", fs.nextSender, fs.nextTarget); err != nil {
		return fmt.Errorf("store: write %s: %w", fs.seqNumsFileName, err)
	}
	return fs.seqNumsFile.Sync()
}

func (fs *FileStore) writeSession() error {
	if fs.sessionFile == nil {
		return nil
	}
	if _, err := fs.sessionFile.Seek(0, os.SEEK_SET); err != nil {
		return fmt.Errorf("store: seek %s: %w", fs.sessionFileName, err)
	}
	if _, err := fs.sessionFile.WriteString(fs.creationTime.Format(sessionTimeLayout)); err != nil {
		return fmt.Errorf("store: write %s: %w", fs.sessionFileName, err)
	}
	return fs.sessionFile.Sync()
}

// expandPathTemplate replaces strftime-style date tokens with the
// current UTC date, mirroring the original system's mystrftime helper.
func expandPathTemplate(path string) string {
	now := time.Now().UTC()
	r := strings.NewReplacer(
		"%Y", now.Format("2006"),
		"%m", now.Format("01"),
		"%d", now.Format("02"),
	)
	return r.Replace(path)
}

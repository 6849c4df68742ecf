package service

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"parley/internal/model/file"
	"parley/internal/pkg/storage"
	"parley/internal/pkg/storage/local"
	"parley/internal/repository"
)

// brokenStorage 删除总是失败
type brokenStorage struct {
	storage.Storage
}

func (brokenStorage) Delete(ctx context.Context, key string) error {
	return errors.New("storage unavailable")
}

// failingFileStore 创建文件记录总是失败
type failingFileStore struct {
	repository.Store
}

func (failingFileStore) CreateFile(ctx context.Context, f *file.File) error {
	return errors.New("db down")
}

func TestFileService(t *testing.T) {
	Convey("FileService", t, func() {
		f := newFixture(t)
		st, err := local.NewLocalStorage(t.TempDir(), "http://localhost:8080/uploads")
		So(err, ShouldBeNil)
		svc := NewFileService(f.store, st, nil, 16)

		upload := func(name, contentType, body string) (*UploadResult, error) {
			return svc.Upload(f.ctx, UploadInput{UserID: "u1", FileName: name, ContentType: contentType, Data: strings.NewReader(body)})
		}

		Convey("上传文本文件并提取内容", func() {
			res, err := upload("notes.TXT", "text/plain", "hello file")
			So(err, ShouldBeNil)
			So(res.OriginalName, ShouldEqual, "notes.TXT")
			So(res.Size, ShouldEqual, int64(10))
			So(res.FileType, ShouldEqual, file.TypeOther)
			So(res.URL, ShouldStartWith, "http://localhost:8080/uploads/files/u1/")

			rec, err := f.store.GetFile(f.ctx, res.ID)
			So(err, ShouldBeNil)
			So(rec.ExtractedText, ShouldEqual, "hello file")

			exists, _ := st.Exists(f.ctx, rec.StorageKey)
			So(exists, ShouldBeTrue)

			dl, err := svc.Download(f.ctx, "u1", res.ID)
			So(err, ShouldBeNil)
			data, _ := io.ReadAll(dl.Data)
			dl.Data.Close()
			So(string(data), ShouldEqual, "hello file")

			list, err := svc.List(f.ctx, "u1")
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 1)
			So(list[0].URL, ShouldEqual, res.URL)

			Convey("他人不可下载或删除", func() {
				_, err := svc.Download(f.ctx, "u2", res.ID)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(errors.Is(svc.Delete(f.ctx, "u2", res.ID), repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("删除同时移除存储内容", func() {
				So(svc.Delete(f.ctx, "u1", res.ID), ShouldBeNil)
				exists, _ := st.Exists(f.ctx, rec.StorageKey)
				So(exists, ShouldBeFalse)
				_, err := f.store.GetFile(f.ctx, res.ID)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("存储删除失败时保留记录", func() {
				broken := NewFileService(f.store, brokenStorage{Storage: st}, nil, 16)
				So(broken.Delete(f.ctx, "u1", res.ID), ShouldNotBeNil)
				_, err := f.store.GetFile(f.ctx, res.ID)
				So(err, ShouldBeNil)
			})
		})

		Convey("图片按 MIME 分类", func() {
			res, err := upload("cat.png", "image/png", "png")
			So(err, ShouldBeNil)
			So(res.FileType, ShouldEqual, file.TypeImage)
		})

		Convey("拒绝不允许的扩展名和超限文件", func() {
			_, err := upload("run.exe", "application/octet-stream", "MZ")
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
			_, err = upload("noext", "text/plain", "x")
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
			_, err = upload("big.txt", "text/plain", strings.Repeat("x", 17))
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)

			list, _ := svc.List(f.ctx, "u1")
			So(list, ShouldBeEmpty)
		})

		Convey("按会话列出文件", func() {
			conv := f.newConversation(t, "u1")
			res, err := svc.Upload(f.ctx, UploadInput{UserID: "u1", ConversationID: conv.ID, FileName: "a.pdf", ContentType: "application/pdf", Data: strings.NewReader("pdf")})
			So(err, ShouldBeNil)
			So(res.FileType, ShouldEqual, file.TypeDocument)
			_, err = upload("b.txt", "text/plain", "b")
			So(err, ShouldBeNil)

			list, err := svc.ListByConversation(f.ctx, "u1", conv.ID)
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 1)
			So(list[0].ID, ShouldEqual, res.ID)

			_, err = svc.Upload(f.ctx, UploadInput{UserID: "u2", ConversationID: conv.ID, FileName: "c.txt", Data: strings.NewReader("c")})
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("记录写入失败时删除已存储的内容", func() {
			dir := t.TempDir()
			st2, _ := local.NewLocalStorage(dir, "http://localhost/uploads")
			svc2 := NewFileService(failingFileStore{Store: f.store}, st2, nil, 16)
			_, err := svc2.Upload(f.ctx, UploadInput{UserID: "u1", FileName: "a.txt", ContentType: "text/plain", Data: strings.NewReader("a")})
			So(err, ShouldNotBeNil)

			entries, _ := listFiles(dir)
			So(entries, ShouldBeEmpty)
		})
	})
}

func TestExtractText(t *testing.T) {
	Convey("超长文本截断在完整字符上", t, func() {
		text := strings.Repeat("a", maxExtractedText-1) + "中文"
		out := extractText([]byte(text))
		So(len(out), ShouldBeLessThanOrEqualTo, maxExtractedText)
		So(strings.HasSuffix(out, "a"), ShouldBeTrue)
		So(extractText([]byte("short")), ShouldEqual, "short")
	})
}

// listFiles 返回目录下的全部普通文件
func listFiles(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

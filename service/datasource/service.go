/*
 * @module service/datasource/service
 * @description 数据源管理服务：注册、更新、连接测试与连接复用
 * @architecture 服务层
 * @stateFlow 注册（口令加密）-> 连接测试更新状态 -> 质量检测取连接
 * @rules 同一数据源连接复用，配置变更后旧连接关闭并清理缓存
 * @dependencies gorm.io/gorm, geodata-quality-service/service/models
 * @refs dal.go, credentials.go, cache.go
 */

package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"geodata-quality-service/service/models"

	"gorm.io/gorm"
)

// Service 数据源管理服务
type Service struct {
	db    *gorm.DB
	cache *Cache

	mu    sync.Mutex
	conns map[string]*Connection
}

// NewService 创建数据源管理服务
func NewService(db *gorm.DB, cache *Cache) *Service {
	return &Service{
		db:    db,
		cache: cache,
		conns: make(map[string]*Connection),
	}
}

// CreateDataSource 注册数据源，明文口令加密后入库
func (s *Service) CreateDataSource(ds *models.DataSource, plainPassword string) error {
	encrypted, err := EncryptPassword(plainPassword)
	if err != nil {
		return err
	}
	ds.Password = encrypted
	if err := s.db.Create(ds).Error; err != nil {
		return fmt.Errorf("创建数据源失败: %w", err)
	}
	return nil
}

// UpdateDataSource 更新数据源配置，plainPassword 非空时重新加密
func (s *Service) UpdateDataSource(ds *models.DataSource, plainPassword string) error {
	if plainPassword != "" {
		encrypted, err := EncryptPassword(plainPassword)
		if err != nil {
			return err
		}
		ds.Password = encrypted
	}
	if err := s.db.Save(ds).Error; err != nil {
		return fmt.Errorf("更新数据源失败: %w", err)
	}
	s.closeConnection(ds.ID)
	if s.cache != nil {
		s.cache.Invalidate(context.Background(), ds.ID)
	}
	return nil
}

// DeleteDataSource 删除数据源并释放连接与缓存
func (s *Service) DeleteDataSource(id string) error {
	if err := s.db.Delete(&models.DataSource{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("删除数据源失败: %w", err)
	}
	s.closeConnection(id)
	if s.cache != nil {
		s.cache.Invalidate(context.Background(), id)
	}
	return nil
}

// GetDataSource 按 ID 查询数据源
func (s *Service) GetDataSource(id string) (*models.DataSource, error) {
	var ds models.DataSource
	if err := s.db.First(&ds, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("数据源 %s 不存在: %w", id, err)
	}
	return &ds, nil
}

// ListDataSources 列出启用的数据源
func (s *Service) ListDataSources() ([]models.DataSource, error) {
	var list []models.DataSource
	if err := s.db.Where("is_active = ?", true).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("查询数据源列表失败: %w", err)
	}
	return list, nil
}

// TestConnection 连接测试并回写状态
func (s *Service) TestConnection(ctx context.Context, id string) (bool, error) {
	ds, err := s.GetDataSource(id)
	if err != nil {
		return false, err
	}
	conn, err := s.openConnection(ctx, ds)
	ok := err == nil
	if conn != nil {
		conn.Close()
	}
	if updateErr := s.db.Model(&models.DataSource{}).Where("id = ?", id).
		Update("status", ok).Error; updateErr != nil {
		slog.Warn("更新数据源状态失败", "id", id, "error", updateErr)
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetConnection 获取复用连接，不存在时新建
func (s *Service) GetConnection(ctx context.Context, id string) (*Connection, error) {
	s.mu.Lock()
	if conn, ok := s.conns[id]; ok {
		s.mu.Unlock()
		return conn, nil
	}
	s.mu.Unlock()

	ds, err := s.GetDataSource(id)
	if err != nil {
		return nil, err
	}
	conn, err := s.openConnection(ctx, ds)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.conns[id]; ok {
		conn.Close()
		return existing, nil
	}
	s.conns[id] = conn
	return conn, nil
}

// openConnection 解密口令后建立连接
func (s *Service) openConnection(ctx context.Context, ds *models.DataSource) (*Connection, error) {
	password, err := DecryptPassword(ds.Password)
	if err != nil {
		return nil, err
	}
	return Open(ctx, ds, password, s.cache)
}

// closeConnection 关闭并移除复用连接
func (s *Service) closeConnection(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn, ok := s.conns[id]; ok {
		conn.Close()
		delete(s.conns, id)
	}
}

// Close 关闭全部复用连接
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, conn := range s.conns {
		conn.Close()
		delete(s.conns, id)
	}
}
